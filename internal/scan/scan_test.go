package scan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gushwork/leadwatch/internal/extract"
)

const fixture = `<!doctype html>
<html><body>
  <div>
    <form id="contact" action="/submit" method="post">
      <input type="text" name="full_name">
      <input type="email" name="email">
      <input type="tel" name="phone">
      <textarea name="message"></textarea>
      <select name="interest"><option>a</option></select>
      <input type="submit" value="Go">
    </form>
  </div>
  <section>
    <form id="newsletter">
      <input type="email" name="subscriber_email">
    </form>
  </section>
</body></html>`

func TestParse_FindsFormsAndCategories(t *testing.T) {
	s := New(nil, extract.DefaultRules("_trap"))
	report, err := s.Parse(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(report.Forms) != 2 {
		t.Fatalf("forms: got %d, want 2", len(report.Forms))
	}

	contact := report.Forms[0]
	if contact.ID != "contact" || contact.Action != "/submit" || contact.Method != "POST" {
		t.Fatalf("contact form: %+v", contact)
	}
	if len(contact.Fields) != 5 {
		t.Fatalf("contact fields: %+v", contact.Fields)
	}

	wantCats := map[string]extract.Category{
		"full_name": extract.CategoryName,
		"email":     extract.CategoryEmail,
		"phone":     extract.CategoryPhone,
		"message":   extract.CategoryMessage,
		"interest":  "",
	}
	for _, f := range contact.Fields {
		if got := wantCats[f.Name]; f.Category != got {
			t.Fatalf("field %q: category %q, want %q", f.Name, f.Category, got)
		}
	}

	if report.Forms[1].Fields[0].Category != extract.CategoryEmail {
		t.Fatalf("newsletter field: %+v", report.Forms[1].Fields[0])
	}
}

func TestPage_FetchAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(fixture))
	}))
	defer srv.Close()

	s := New(srv.Client(), extract.DefaultRules("_trap"))

	report, err := s.Page(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.URL != srv.URL+"/" || len(report.Forms) != 2 {
		t.Fatalf("report: %+v", report)
	}

	if _, err := s.Page(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatal("expected error for 404 page")
	}
}
