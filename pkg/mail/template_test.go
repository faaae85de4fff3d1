package mail

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemplate(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".html"), []byte(body), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
}

func TestFileTemplateProviderRender(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "confirm-email",
		`<p>Hello {{FirstName}},</p><a href="{{ConfirmURL}}">Confirm</a>`)

	p := NewFileTemplateProvider(dir)
	got, err := p.Render("confirm-email", map[string]string{
		"FirstName":  "Ada",
		"ConfirmURL": "https://example.com/confirm?t=abc",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := `<p>Hello Ada,</p><a href="https://example.com/confirm?t=abc">Confirm</a>`
	if got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestFileTemplateProviderLeavesUnknownPlaceholders(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "welcome", `Hi {{FirstName}}, code: {{Code}}`)

	p := NewFileTemplateProvider(dir)
	got, err := p.Render("welcome", map[string]string{"FirstName": "Ada"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "{{Code}}") {
		t.Fatalf("unmatched placeholder should survive, got %q", got)
	}
}

func TestFileTemplateProviderErrors(t *testing.T) {
	p := NewFileTemplateProvider(t.TempDir())

	if _, err := p.Render("missing", nil); err == nil {
		t.Fatal("expected error for missing template")
	}
	if _, err := p.Render("../etc/passwd", nil); err == nil {
		t.Fatal("expected error for path traversal in template name")
	}
	if _, err := p.Render("", nil); err == nil {
		t.Fatal("expected error for empty template name")
	}
}

func TestWorkerHandleRendersAndSends(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "confirm-email", `Hello {{FirstName}}`)

	sender := NewMemorySender()
	w := NewWorker("amqp://unused", sender, NewFileTemplateProvider(dir), nil)

	body := []byte(`{"to":"ada@example.com","toName":"Ada","subject":"Confirm your email","template":"confirm-email","data":{"FirstName":"Ada"}}`)
	if err := w.handle(context.Background(), body); err != nil {
		t.Fatalf("handle: %v", err)
	}

	msgs := sender.Messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	if msgs[0].To != "ada@example.com" || msgs[0].Subject != "Confirm your email" {
		t.Fatalf("unexpected message header: %+v", msgs[0])
	}
	if msgs[0].HTMLBody != "Hello Ada" {
		t.Fatalf("HTMLBody = %q", msgs[0].HTMLBody)
	}
}

func TestWorkerHandleBadPayload(t *testing.T) {
	sender := NewMemorySender()
	w := NewWorker("amqp://unused", sender, NewFileTemplateProvider(t.TempDir()), nil)

	if err := w.handle(context.Background(), []byte("{not json")); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if err := w.handle(context.Background(), []byte(`{"template":"missing"}`)); err == nil {
		t.Fatal("expected render error for unknown template")
	}
	if len(sender.Messages()) != 0 {
		t.Fatal("nothing should have been sent")
	}
}
