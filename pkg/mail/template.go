// Package mail renders HTML email templates and delivers them over SMTP,
// either synchronously or through a RabbitMQ-backed queue.
package mail

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TemplateProvider loads a named template and substitutes placeholders.
type TemplateProvider interface {
	Render(name string, data map[string]string) (string, error)
}

// FileTemplateProvider reads {name}.html files from a directory. Placeholders
// use the literal form {{Key}}; keys missing from data are left intact so a
// stray placeholder is visible in the delivered mail instead of silently
// disappearing.
type FileTemplateProvider struct {
	dir string
}

// NewFileTemplateProvider builds a provider rooted at dir.
func NewFileTemplateProvider(dir string) *FileTemplateProvider {
	return &FileTemplateProvider{dir: dir}
}

// Render loads the template and applies the substitutions.
func (p *FileTemplateProvider) Render(name string, data map[string]string) (string, error) {
	if strings.ContainsAny(name, `/\`) || name == "" {
		return "", fmt.Errorf("invalid template name %q", name)
	}
	path := filepath.Join(p.dir, name+".html")
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template %q: %w", name, err)
	}
	body := string(raw)
	for key, value := range data {
		body = strings.ReplaceAll(body, "{{"+key+"}}", value)
	}
	return body, nil
}
