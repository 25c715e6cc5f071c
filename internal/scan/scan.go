// Package scan provides the browserless preflight path: fetch a page over
// plain HTTP, parse the static markup, and report every form it carries
// together with the semantic category each field would normalize to.
// Forms rendered by script or hidden in shadow roots are invisible here —
// that is what the browser watcher is for.
package scan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/gushwork/leadwatch/internal/extract"
)

// FieldReport describes one field of a discovered form.
type FieldReport struct {
	Name     string           `json:"name"`
	Type     string           `json:"type,omitempty"`
	Category extract.Category `json:"category,omitempty"`
}

// FormReport describes one discovered form.
type FormReport struct {
	ID     string        `json:"id,omitempty"`
	Action string        `json:"action,omitempty"`
	Method string        `json:"method,omitempty"`
	Fields []FieldReport `json:"fields"`
}

// Report is the result of scanning one page.
type Report struct {
	URL   string       `json:"url"`
	Forms []FormReport `json:"forms"`
}

// Scanner fetches and parses pages.
type Scanner struct {
	client *http.Client
	rules  []extract.Rule
}

// New creates a Scanner using the given rule table for field previews.
// A nil client gets a 15s-timeout default.
func New(client *http.Client, rules []extract.Rule) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Scanner{client: client, rules: rules}
}

// Page fetches pageURL and reports its static forms.
func (s *Scanner) Page(ctx context.Context, pageURL string) (*Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("scan: new request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan: fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scan: fetch %s: status %d", pageURL, resp.StatusCode)
	}

	report, err := s.Parse(resp.Body)
	if err != nil {
		return nil, err
	}
	report.URL = pageURL
	return report, nil
}

// Parse reads HTML and reports the forms it contains. Split from Page so
// fixtures can be scanned without a server.
func (s *Scanner) Parse(r io.Reader) (*Report, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("scan: parse html: %w", err)
	}

	report := &Report{}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "form" {
			report.Forms = append(report.Forms, s.formReport(n))
			// Nested forms are invalid HTML; the parser has already
			// flattened them, so no recursion into form for more forms.
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return report, nil
}

func (s *Scanner) formReport(form *html.Node) FormReport {
	fr := FormReport{
		ID:     attr(form, "id"),
		Action: attr(form, "action"),
		Method: strings.ToUpper(attr(form, "method")),
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "input", "select", "textarea":
				name := attr(n, "name")
				if name != "" {
					fr.Fields = append(fr.Fields, FieldReport{
						Name:     name,
						Type:     attr(n, "type"),
						Category: extract.Categorize(s.rules, strings.ToLower(name)),
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(form)

	return fr
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
