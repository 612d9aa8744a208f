package screening

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/hr-screener/internal/ai"
	"github.com/spigell/hr-screener/internal/cache"
	"github.com/spigell/hr-screener/internal/calendar"
	"github.com/spigell/hr-screener/internal/decision"
	"github.com/spigell/hr-screener/internal/extract"
	"github.com/spigell/hr-screener/internal/jobpost"
	"github.com/spigell/hr-screener/internal/pipeline"
)

// fileExtractor reads the saved upload as plain text.
type fileExtractor struct{}

func (fileExtractor) Extract(_ context.Context, path string) (*extract.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &extract.Error{Path: path, Err: err}
	}
	text := string(data)
	return &extract.Document{Path: path, Text: text, Email: extract.FindEmail(text), Format: extract.FormatText}, nil
}

type countingEvaluator struct {
	score int
	calls int
}

func (e *countingEvaluator) Evaluate(context.Context, string, string) (*ai.Evaluation, error) {
	e.calls++
	return &ai.Evaluation{Score: e.score, Summary: "solid Python and ML experience"}, nil
}

type recordingScheduler struct {
	requests []calendar.Request
}

func (s *recordingScheduler) Schedule(_ context.Context, req calendar.Request) (*calendar.Outcome, error) {
	s.requests = append(s.requests, req)
	return &calendar.Outcome{Status: calendar.StatusSuccess, MeetingLink: "https://meet.google.com/abc-defg-hij"}, nil
}

func newSession(t *testing.T, score int) (*Session, *countingEvaluator, *recordingScheduler, string) {
	t.Helper()

	evaluator := &countingEvaluator{score: score}
	scheduler := &recordingScheduler{}

	p, err := pipeline.New(pipeline.Deps{
		Fetcher:   jobpost.Static{Text: "We are looking for Gen AI engineer with expertise in Python and machine learning."},
		Extractor: fileExtractor{},
		Evaluator: evaluator,
		Scheduler: scheduler,
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := New(p, cache.NewMemory(0), Config{JobURL: "https://example.com/jobs/42", JobTitle: "Gen AI Engineer", UploadsDir: dir}, zap.NewNop())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s, evaluator, scheduler, dir
}

func TestScreenUsesCacheForIdenticalUploads(t *testing.T) {
	s, evaluator, _, dir := newSession(t, 88)
	ctx := context.Background()
	resume := []byte("Jane Doe\njane@example.com\nPython, PyTorch, LLMs")

	first, err := s.Screen(ctx, "../../Jane Doe CV.txt", resume)
	if err != nil {
		t.Fatalf("screen: %v", err)
	}
	if first.Cached {
		t.Fatal("first screening must not be cached")
	}
	if first.Entry.Decision != decision.Proceed || first.Entry.Score != 88 || first.Entry.Email != "jane@example.com" {
		t.Fatalf("unexpected entry %+v", first.Entry)
	}

	want := filepath.Join(dir, cache.Key(resume, "https://example.com/jobs/42")[:12]+"-Jane_Doe_CV.txt")
	if first.Entry.FilePath != want {
		t.Fatalf("file path = %q, want %q", first.Entry.FilePath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected upload to be saved: %v", err)
	}

	second, err := s.Screen(ctx, "renamed.txt", resume)
	if err != nil {
		t.Fatalf("screen: %v", err)
	}
	if !second.Cached || second.Entry.Score != 88 {
		t.Fatalf("expected cached result, got %+v", second)
	}

	if evaluator.calls != 1 {
		t.Fatalf("evaluator called %d times, want 1", evaluator.calls)
	}
	if len(s.Results()) != 1 {
		t.Fatalf("expected one session result, got %d", len(s.Results()))
	}
}

func TestScreenDistinctUploads(t *testing.T) {
	s, evaluator, _, _ := newSession(t, 60)
	ctx := context.Background()

	for _, body := range []string{"first resume", "second resume"} {
		res, err := s.Screen(ctx, "cv.txt", []byte(body))
		if err != nil {
			t.Fatalf("screen: %v", err)
		}
		if res.Entry.Decision != decision.Reject || res.Entry.Email != extract.EmailNotFound {
			t.Fatalf("unexpected entry %+v", res.Entry)
		}
	}

	if evaluator.calls != 2 {
		t.Fatalf("evaluator called %d times, want 2", evaluator.calls)
	}

	results := s.Results()
	if len(results) != 2 || results[0].Key == results[1].Key {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestScreenKeepsSameNamedUploadsApart(t *testing.T) {
	s, _, _, _ := newSession(t, 90)
	ctx := context.Background()

	alice := []byte("Alice\nalice@example.com\nPython")
	bob := []byte("Bob\nbob@example.com\nJava")

	first, err := s.Screen(ctx, "resume.txt", alice)
	if err != nil {
		t.Fatalf("screen alice: %v", err)
	}
	second, err := s.Screen(ctx, "resume.txt", bob)
	if err != nil {
		t.Fatalf("screen bob: %v", err)
	}

	if first.Entry.FilePath == second.Entry.FilePath {
		t.Fatalf("both uploads stored at %q", first.Entry.FilePath)
	}

	for _, tt := range []struct {
		path string
		want []byte
	}{
		{path: first.Entry.FilePath, want: alice},
		{path: second.Entry.FilePath, want: bob},
	} {
		got, err := os.ReadFile(tt.path)
		if err != nil {
			t.Fatalf("read %s: %v", tt.path, err)
		}
		if string(got) != string(tt.want) {
			t.Fatalf("%s contains %q, want %q", tt.path, got, tt.want)
		}
	}

	if first.Entry.Email != "alice@example.com" || second.Entry.Email != "bob@example.com" {
		t.Fatalf("unexpected emails %q and %q", first.Entry.Email, second.Entry.Email)
	}
}

func TestScreenRejectsEmptyUpload(t *testing.T) {
	s, _, _, _ := newSession(t, 90)
	if _, err := s.Screen(context.Background(), "cv.pdf", nil); !errors.Is(err, ErrEmptyUpload) {
		t.Fatalf("expected ErrEmptyUpload, got %v", err)
	}
}

func TestSchedule(t *testing.T) {
	s, _, scheduler, _ := newSession(t, 92)
	ctx := context.Background()

	res, err := s.Screen(ctx, "cv.txt", []byte("a@b.com python"))
	if err != nil {
		t.Fatalf("screen: %v", err)
	}
	if len(scheduler.requests) != 0 {
		t.Fatal("screening must not schedule")
	}

	out, err := s.Schedule(ctx, res.Entry.FilePath, "a@b.com", "2025-08-12 03:00 PM")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !out.Scheduled() || out.Scheduling.MeetingLink == "" {
		t.Fatalf("expected scheduled interview, got %+v", out.Scheduling)
	}
	if len(scheduler.requests) != 1 || scheduler.requests[0].JobTitle != "Gen AI Engineer" {
		t.Fatalf("unexpected scheduling requests %+v", scheduler.requests)
	}

	if _, err := s.Schedule(ctx, res.Entry.FilePath, "", "2025-08-12 03:00 PM"); err == nil {
		t.Fatal("expected error without email")
	}
}
