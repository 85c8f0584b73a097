package reader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCleanTextCollapsesWhitespaceAndPreservesParagraphs(t *testing.T) {
	t.Parallel()

	input := "  First   paragraph \n\n Second\tparagraph \r\n\r\nThird line "
	got := CleanText(input)
	want := "First paragraph\n\nSecond paragraph\n\nThird line"
	if got != want {
		t.Fatalf("CleanText mismatch\nwant: %q\ngot:  %q", want, got)
	}
}

func TestFetchTextPlain(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != defaultUserAgent {
			t.Errorf("unexpected user agent: %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("  Release   notes \r\n\r\n v2 shipped "))
	}))
	defer srv.Close()

	got, err := Extractor{}.FetchText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != "Release notes\n\nv2 shipped" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestFetchTextStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Extractor{}.FetchText(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestFromHTML(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>Launch</title></head><body><article>
<h1>Acme launches orbital drone</h1>
<p>Acme announced on Tuesday that its orbital drone platform is entering public testing after two years of closed trials.</p>
<p>The company said the platform will support third party payloads and expects the first commercial flights next spring.</p>
</article></body></html>`

	got, err := Extractor{}.FromHTML(html, "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(got, "orbital drone platform") {
		t.Fatalf("expected article text, got %q", got)
	}
}
