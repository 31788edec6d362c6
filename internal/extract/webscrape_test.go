package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lenscan/lenscan/internal/connector"
)

func pagesPayload(t *testing.T, pages ...connector.Page) *connector.Payload {
	t.Helper()
	body, err := json.Marshal(connector.PagesPayload{Pages: pages})
	if err != nil {
		t.Fatal(err)
	}
	return &connector.Payload{ContentType: connector.PagesContentType, Body: body}
}

const venuePage = `<!doctype html>
<html>
<head>
  <title>Padel Plaza Rotterdam </title>
  <meta name="description" content="Indoor padel with  6 courts">
  <style>body { color: red; }</style>
</head>
<body>
  <h1>Padel Plaza</h1>
  <h2>Book a court</h2>
  <script>trackVisit();</script>
  <p>Open daily from 9 to 22.</p>
</body>
</html>`

func TestWebExtractor(t *testing.T) {
	e := NewWebExtractor("webscrape", nil)
	payload := pagesPayload(t, connector.Page{URL: "https://pp.nl/", HTML: venuePage})

	extractions, err := e.Extract(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(extractions) != 1 {
		t.Fatalf("expected 1 extraction, got %d", len(extractions))
	}

	ex := extractions[0]
	if ex.Primitives.Name != "Padel Plaza Rotterdam" {
		t.Errorf("name = %q", ex.Primitives.Name)
	}
	if ex.Primitives.Description != "Indoor padel with 6 courts" {
		t.Errorf("description = %q", ex.Primitives.Description)
	}
	if ex.Primitives.Website != "https://pp.nl" {
		t.Errorf("website = %q", ex.Primitives.Website)
	}

	text := ex.Observations["page_text"]
	if !strings.Contains(text, "Open daily from 9 to 22.") {
		t.Errorf("page_text missing body copy: %q", text)
	}
	if strings.Contains(text, "trackVisit") || strings.Contains(text, "color: red") {
		t.Errorf("script/style text leaked into page_text: %q", text)
	}

	if ex.Observations["heading_1"] != "Padel Plaza" {
		t.Errorf("heading_1 = %q", ex.Observations["heading_1"])
	}
	if ex.Observations["heading_2"] != "Book a court" {
		t.Errorf("heading_2 = %q", ex.Observations["heading_2"])
	}
}

// fakeObserver returns canned observations.
type fakeObserver struct {
	obs map[string]string
	err error
}

func (f *fakeObserver) Observe(context.Context, string) (map[string]string, error) {
	return f.obs, f.err
}

func TestWebExtractor_ObserverPrefixed(t *testing.T) {
	e := NewWebExtractor("webscrape", &fakeObserver{obs: map[string]string{"opening_hours": " 9 - 22 "}})
	payload := pagesPayload(t, connector.Page{URL: "https://pp.nl", HTML: venuePage})

	extractions, err := e.Extract(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}
	if got := extractions[0].Observations["llm_opening_hours"]; got != "9 - 22" {
		t.Errorf("llm observation = %q", got)
	}
}

func TestWebExtractor_ObserverFailureIsNotFatal(t *testing.T) {
	e := NewWebExtractor("webscrape", &fakeObserver{err: errors.New("provider down")})
	payload := pagesPayload(t, connector.Page{URL: "https://pp.nl", HTML: venuePage})

	extractions, err := e.Extract(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(extractions) != 1 {
		t.Fatal("page extraction must survive observer failure")
	}
	for k := range extractions[0].Observations {
		if strings.HasPrefix(k, "llm_") {
			t.Errorf("unexpected llm observation %q", k)
		}
	}
}

func TestWebExtractor_BadEnvelope(t *testing.T) {
	e := NewWebExtractor("webscrape", nil)
	if _, err := e.Extract(context.Background(), &connector.Payload{Body: []byte("not json")}); err == nil {
		t.Error("expected parse error")
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	s := "padelcafé"
	got := truncate(s, 9) // cuts inside the two-byte é
	if got != "padelcaf" {
		t.Errorf("truncate = %q", got)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncate produced invalid UTF-8: %q", got)
	}
	if truncate(s, len(s)) != s {
		t.Error("exact length should not truncate")
	}
	if truncate("日本語", 1) != "" {
		t.Error("first rune wider than the limit should yield empty")
	}
}
