// Package screening keeps the state of an interactive screening session for
// one job posting.
package screening

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hr-screener/internal/cache"
	"github.com/spigell/hr-screener/internal/logger"
	"github.com/spigell/hr-screener/internal/pipeline"
	"github.com/spigell/hr-screener/internal/utils"
)

const DefaultUploadsDir = "data/resumes"

var ErrEmptyUpload = errors.New("uploaded file is empty")

// Runner executes one screening pipeline run.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Output, error)
}

type Config struct {
	JobURL     string
	JobTitle   string
	UploadsDir string
}

type Result struct {
	Key    string
	Entry  *cache.Entry
	Cached bool
}

type Session struct {
	runner Runner
	store  cache.Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	results []Result
	seen    map[string]int
}

func New(runner Runner, store cache.Store, cfg Config, l *zap.Logger) (*Session, error) {
	if runner == nil {
		return nil, errors.New("pipeline runner is required")
	}
	if store == nil {
		store = cache.NewMemory(cache.DefaultMaxEntries)
	}
	if strings.TrimSpace(cfg.UploadsDir) == "" {
		cfg.UploadsDir = DefaultUploadsDir
	}

	return &Session{
		runner: runner,
		store:  store,
		cfg:    cfg,
		logger: logger.WithFields(l, zap.String(logger.FieldJobURL, cfg.JobURL)),
		now:    time.Now,
		seen:   make(map[string]int),
	}, nil
}

func (s *Session) JobURL() string { return s.cfg.JobURL }

// Screen evaluates an uploaded resume. Identical content screened against the
// same job is answered from the cache without running the pipeline.
func (s *Session) Screen(ctx context.Context, fileName string, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}

	key := cache.Key(data, s.cfg.JobURL)

	entry, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache lookup failed", zap.Error(err))
	}
	if ok {
		s.logger.Info("using cached result", zap.String("file", entry.FilePath))
		return s.record(Result{Key: key, Entry: entry, Cached: true}), nil
	}

	path, err := s.save(key, fileName, data)
	if err != nil {
		return nil, err
	}

	out, err := s.runner.Run(ctx, pipeline.Request{ResumePath: path, JobURL: s.cfg.JobURL})
	if err != nil {
		return nil, err
	}

	entry = NewEntry(path, out, s.now())
	if err := s.store.Put(ctx, key, entry); err != nil {
		s.logger.Warn("cache store failed", zap.Error(err))
	}

	return s.record(Result{Key: key, Entry: entry}), nil
}

// Schedule runs the pipeline again for an already screened resume, this time
// booking an interview.
func (s *Session) Schedule(ctx context.Context, filePath, email, preferredTime string) (*pipeline.Output, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(preferredTime) == "" {
		return nil, errors.New("candidate email and preferred time are required")
	}

	return s.runner.Run(ctx, pipeline.Request{
		ResumePath:     filePath,
		JobURL:         s.cfg.JobURL,
		PreferredTime:  preferredTime,
		CandidateEmail: email,
		JobTitle:       s.cfg.JobTitle,
	})
}

// Results lists the session's results in the order they were first screened.
func (s *Session) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out
}

func (s *Session) record(r Result) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.seen[r.Key]; ok {
		s.results[i] = r
	} else {
		s.seen[r.Key] = len(s.results)
		s.results = append(s.results, r)
	}
	return &r
}

// uploadPrefixLen hex digits of the content hash prefix every stored upload,
// so same-named resumes never overwrite each other.
const uploadPrefixLen = 12

func (s *Session) save(key, fileName string, data []byte) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}

	name := key[:uploadPrefixLen] + "-" + utils.SafeFileName(fileName)
	path := filepath.Join(s.cfg.UploadsDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

// NewEntry condenses a pipeline output into a cacheable result.
func NewEntry(path string, out *pipeline.Output, now time.Time) *cache.Entry {
	entry := &cache.Entry{
		Decision:   out.Decision,
		Summary:    out.Reason,
		FilePath:   path,
		Similarity: out.Similarity,
		CreatedAt:  now.UTC(),
	}
	if out.Evaluation != nil {
		entry.Score = out.Evaluation.Score
		entry.Summary = out.Evaluation.Summary
	}
	if out.Document != nil {
		entry.Email = out.Document.Email
	}
	return entry
}
