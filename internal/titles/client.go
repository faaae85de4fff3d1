// Package titles proxies title searches against the Open Library catalog.
package titles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	defaultBaseURL = "https://openlibrary.org"
	defaultTimeout = 10 * time.Second
	maxResults     = 20
	coverURLFormat = "https://covers.openlibrary.org/b/id/%d-M.jpg"
)

// ErrUpstream marks failures talking to the catalog service.
var ErrUpstream = errors.New("title catalog unavailable")

// Result is a single matched title.
type Result struct {
	Title          string   `json:"title"`
	Authors        []string `json:"authors,omitempty"`
	ISBNs          []string `json:"isbns,omitempty"`
	FirstPublished int      `json:"firstPublished,omitempty"`
	Publisher      string   `json:"publisher,omitempty"`
	Language       string   `json:"language,omitempty"`
	CoverURL       string   `json:"coverUrl,omitempty"`
	Description    string   `json:"description,omitempty"`
}

// Client queries the Open Library search endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a catalog client. An empty baseURL selects the public
// Open Library endpoint.
func NewClient(baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

type searchResponse struct {
	Docs []searchDoc `json:"docs"`
}

type searchDoc struct {
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	ISBN             []string `json:"isbn"`
	FirstPublishYear int      `json:"first_publish_year"`
	Publisher        []string `json:"publisher"`
	Language         []string `json:"language"`
	CoverID          int      `json:"cover_i"`
	Description      string   `json:"description"`
}

// Search queries the catalog for titles matching the search string.
func (c *Client) Search(ctx context.Context, searchString string) ([]Result, error) {
	q := url.Values{}
	q.Set("q", searchString)
	q.Set("limit", fmt.Sprintf("%d", maxResults))
	endpoint := c.baseURL + "/search.json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}

	results := make([]Result, 0, len(body.Docs))
	for _, doc := range body.Docs {
		if strings.TrimSpace(doc.Title) == "" {
			continue
		}
		r := Result{
			Title:          doc.Title,
			Authors:        doc.AuthorName,
			FirstPublished: doc.FirstPublishYear,
			Description:    StripHTML(doc.Description),
		}
		if len(doc.ISBN) > 0 {
			// Upstream lists every known edition; the first few are enough.
			n := len(doc.ISBN)
			if n > 5 {
				n = 5
			}
			r.ISBNs = doc.ISBN[:n]
		}
		if len(doc.Publisher) > 0 {
			r.Publisher = doc.Publisher[0]
		}
		if len(doc.Language) > 0 {
			r.Language = doc.Language[0]
		}
		if doc.CoverID > 0 {
			r.CoverURL = fmt.Sprintf(coverURLFormat, doc.CoverID)
		}
		results = append(results, r)
	}
	return results, nil
}

// StripHTML flattens markup into plain text, collapsing whitespace.
func StripHTML(s string) string {
	if s == "" || !strings.ContainsRune(s, '<') {
		return strings.Join(strings.Fields(s), " ")
	}
	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.WriteString(tokenizer.Token().Data)
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
