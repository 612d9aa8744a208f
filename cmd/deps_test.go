package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/hr-screener/internal/ai"
	"github.com/spigell/hr-screener/internal/cache"
	"github.com/spigell/hr-screener/internal/calendar"
	"github.com/spigell/hr-screener/internal/credentials"
	"github.com/spigell/hr-screener/internal/decision"
	"github.com/spigell/hr-screener/internal/extract"
	"github.com/spigell/hr-screener/internal/jobpost"
	"github.com/spigell/hr-screener/internal/pipeline"
)

func TestNewTokenStore(t *testing.T) {
	tests := []struct {
		name    string
		cfg     CalendarConfig
		wantErr bool
		check   func(t *testing.T, store credentials.TokenStore)
	}{
		{
			name: "file",
			cfg:  CalendarConfig{TokenStore: "file", TokenFile: "token.json"},
			check: func(t *testing.T, store credentials.TokenStore) {
				if fs, ok := store.(*credentials.FileStore); !ok || fs.Path != "token.json" {
					t.Fatalf("unexpected store %#v", store)
				}
			},
		},
		{
			name: "keyring",
			cfg:  CalendarConfig{TokenStore: "Keyring", KeyringAccount: "recruiting"},
			check: func(t *testing.T, store credentials.TokenStore) {
				if ks, ok := store.(*credentials.KeyringStore); !ok || ks.Account != "recruiting" {
					t.Fatalf("unexpected store %#v", store)
				}
			},
		},
		{name: "file without path", cfg: CalendarConfig{TokenStore: "file"}, wantErr: true},
		{name: "unknown", cfg: CalendarConfig{TokenStore: "vault"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := newTokenStore(&tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, store)
		})
	}
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	store, closeStore, err := newStore(ctx, &CacheConfig{Backend: "memory", MaxEntries: 2})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := store.(*cache.Memory); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
	if err := closeStore(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, closeStore, err = newStore(ctx, &CacheConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "cache.db")})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if _, ok := store.(*cache.SQLite); !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	if err := closeStore(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, _, err := newStore(ctx, &CacheConfig{Backend: "redis"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNewFetcherWithoutURLUsesDefaultDescription(t *testing.T) {
	fetcher := newFetcher(&Config{JobTitle: "Gen AI Engineer"}, zap.NewNop())

	posting, err := fetcher.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if posting.Text != defaultJobDescription || posting.Title != "Gen AI Engineer" {
		t.Fatalf("unexpected posting %+v", posting)
	}

	if _, ok := newFetcher(&Config{JobURL: "https://example.com/jobs/42"}, zap.NewNop()).(*jobpost.Client); !ok {
		t.Fatal("expected http fetcher for a job url")
	}
}

func TestNewGeneratorRejectsUnknownProvider(t *testing.T) {
	if _, err := newGenerator(context.Background(), &AIConfig{Provider: "openai"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for unsupported provider")
	}

	t.Setenv("GEMINI_API_KEY", "")
	if _, err := newGenerator(context.Background(), &AIConfig{Provider: "gemini"}, zap.NewNop()); err == nil {
		t.Fatal("expected error without an api key")
	}
}

func TestPrintOutput(t *testing.T) {
	similarity := 77.5
	out := &pipeline.Output{
		Document:   &extract.Document{Email: "a@b.com"},
		Similarity: &similarity,
		Evaluation: &ai.Evaluation{Score: 92, Summary: "strong match"},
		Decision:   decision.Proceed,
		Scheduling: &calendar.Outcome{Status: calendar.StatusSuccess, Message: "interview scheduled", MeetingLink: "https://meet.google.com/abc"},
	}

	var buf bytes.Buffer
	printOutput(&buf, out)

	for _, want := range []string{"Proceed with interview", "92", "77.50", "a@b.com", "strong match", "https://meet.google.com/abc"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("output %q does not contain %q", buf.String(), want)
		}
	}

	buf.Reset()
	printOutput(&buf, &pipeline.Output{Document: &extract.Document{Email: extract.EmailNotFound}, Decision: decision.Proceed, Evaluation: &ai.Evaluation{Score: 85}})
	if !strings.Contains(buf.String(), "--email") {
		t.Fatalf("expected a hint about --email, got %q", buf.String())
	}

	buf.Reset()
	printOutput(&buf, nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestRedacted(t *testing.T) {
	cfg := &Config{AI: AIConfig{Gemini: GeminiConfig{APIKey: "secret"}}}
	if got := redacted(cfg).AI.Gemini.APIKey; got != "***" {
		t.Fatalf("expected redacted key, got %q", got)
	}
	if cfg.AI.Gemini.APIKey != "secret" {
		t.Fatal("original config must not change")
	}
}
