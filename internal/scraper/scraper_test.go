package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Acme  anuncia\nresultados", "Acme anuncia resultados"},
		{"markup", "<p>Acme <b>anuncia</b></p><script>var x = 1;</script><p>lucro</p>", "Acme anuncia lucro"},
		{"entities", "Caf&eacute; &amp; Acme", "Café & Acme"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFirstImage(t *testing.T) {
	html := `<div><p>text</p><img src="https://img.example.com/a.jpg"><img src="https://img.example.com/b.jpg"></div>`
	if got := FirstImage(html); got != "https://img.example.com/a.jpg" {
		t.Errorf("FirstImage = %q", got)
	}
	if got := FirstImage("<p>no images</p>"); got != "" {
		t.Errorf("FirstImage without img = %q, want empty", got)
	}
}

func TestFetchImage(t *testing.T) {
	// Minimal GIF header is enough for content sniffing.
	gif := []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img.gif":
			w.Write(gif)
		case "/page.html":
			w.Write([]byte("<html><body>hi</body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewScraperWithClient(srv.Client())
	data, mime, err := s.FetchImage(context.Background(), srv.URL+"/img.gif")
	if err != nil {
		t.Fatalf("FetchImage: %v", err)
	}
	if mime != "image/gif" || len(data) != len(gif) {
		t.Errorf("got mime %q len %d", mime, len(data))
	}

	if _, _, err := s.FetchImage(context.Background(), srv.URL+"/page.html"); err == nil {
		t.Errorf("expected error for non-image content")
	}
	if _, _, err := s.FetchImage(context.Background(), srv.URL+"/missing"); err == nil {
		t.Errorf("expected error for 404")
	}
}
