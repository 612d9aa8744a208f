package jobpost

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

const posting = `<!doctype html>
<html><head><title> Gen AI Engineer | Acme </title>
<style>body { color: red }</style>
<script>window.tracking = "ignore me";</script></head>
<body>
  <h1>Gen AI Engineer</h1><p>We need   Python and&nbsp;machine learning.</p>
  <ul><li>LLMs</li><li>RAG</li></ul>
  <noscript>enable js</noscript>
</body></html>`

func TestFetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(posting))
	}))
	defer srv.Close()

	c := New(zap.NewNop(), WithUserAgent("test-agent"))
	p, err := c.Fetch(context.Background(), srv.URL+"/jobs/42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotUA != "test-agent" {
		t.Fatalf("unexpected user agent %q", gotUA)
	}

	if p.Title != "Gen AI Engineer | Acme" {
		t.Fatalf("unexpected title %q", p.Title)
	}

	want := "Gen AI Engineer We need Python and machine learning. LLMs RAG"
	if p.Text != want {
		t.Fatalf("unexpected text:\n got %q\nwant %q", p.Text, want)
	}

	for _, leaked := range []string{"tracking", "color: red", "enable js"} {
		if strings.Contains(p.Text, leaked) {
			t.Fatalf("markup content %q leaked into text", leaked)
		}
	}
}

func TestFetchGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			t.Errorf("expected gzip to be accepted")
		}
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte("<html><body><p>Go developer</p></body></html>"))
		_ = gz.Close()
	}))
	defer srv.Close()

	p, err := New(nil).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Text != "Go developer" {
		t.Fatalf("unexpected text %q", p.Text)
	}
}

func TestFetchPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("  Backend\n\n engineer <b>not html</b> "))
	}))
	defer srv.Close()

	p, err := New(nil).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Text != "Backend engineer <b>not html</b>" {
		t.Fatalf("unexpected text %q", p.Text)
	}
}

func TestFetchFailures(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><script>x()</script></head><body>  </body></html>"))
	}))
	defer empty.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	unreachable := closed.URL
	closed.Close()

	tests := []struct {
		name       string
		url        string
		client     *Client
		status     int
		target     error
		wantTimout bool
	}{
		{name: "not found", url: notFound.URL, client: New(nil), status: http.StatusNotFound},
		{name: "empty page", url: empty.URL, client: New(nil), status: http.StatusOK, target: ErrEmptyPage},
		{name: "unreachable", url: unreachable, client: New(nil)},
		{name: "invalid scheme", url: "ftp://example.com/job", client: New(nil), target: ErrInvalidURL},
		{name: "not a url", url: "job description text", client: New(nil), target: ErrInvalidURL},
		{name: "timeout", url: slow.URL, client: New(nil, WithTimeout(50*time.Millisecond)), wantTimout: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.client.Fetch(context.Background(), tt.url)
			if p != nil {
				t.Fatalf("expected no posting, got %+v", p)
			}

			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected *FetchError, got %T: %v", err, err)
			}

			if fetchErr.StatusCode != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, fetchErr.StatusCode)
			}

			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Fatalf("expected %v, got %v", tt.target, err)
			}

			if fetchErr.Timeout() != tt.wantTimout {
				t.Fatalf("expected timeout=%v, got %v (%v)", tt.wantTimout, fetchErr.Timeout(), err)
			}
		})
	}
}

func TestStatic(t *testing.T) {
	p, err := Static{Text: " We are looking for\tGen AI engineer "}.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Text != "We are looking for Gen AI engineer" {
		t.Fatalf("unexpected text %q", p.Text)
	}

	if _, err := (Static{}).Fetch(context.Background(), ""); !errors.Is(err, ErrEmptyPage) {
		t.Fatalf("expected ErrEmptyPage, got %v", err)
	}
}

func TestHostLimiter(t *testing.T) {
	hl := NewHostLimiter(1, 1)

	if err := hl.Wait(context.Background(), "example.com"); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := hl.Wait(ctx, "example.com"); err == nil {
		t.Fatal("expected second request to exceed the deadline")
	}

	if err := hl.Wait(context.Background(), "other.example.com"); err != nil {
		t.Fatalf("other host has its own bucket: %v", err)
	}
}

func TestCleanText(t *testing.T) {
	if got := CleanText("  a  b \n\t c "); got != "a b c" {
		t.Fatalf("unexpected clean text %q", got)
	}
}
