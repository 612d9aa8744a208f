// Package pipeline runs the screening stages for one resume and one job posting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/hr-screener/internal/ai"
	"github.com/spigell/hr-screener/internal/calendar"
	"github.com/spigell/hr-screener/internal/decision"
	"github.com/spigell/hr-screener/internal/extract"
	"github.com/spigell/hr-screener/internal/jobpost"
	"github.com/spigell/hr-screener/internal/logger"
)

// JobFetcher loads the job description for a URL.
type JobFetcher interface {
	Fetch(ctx context.Context, url string) (*jobpost.Posting, error)
}

// DocumentExtractor reads a resume file.
type DocumentExtractor interface {
	Extract(ctx context.Context, path string) (*extract.Document, error)
}

// SimilarityScorer rates how close a resume is to a job description, 0..100.
type SimilarityScorer interface {
	Score(ctx context.Context, resumeText, jobText string) (float64, error)
}

// InterviewScheduler books an interview for a candidate.
type InterviewScheduler interface {
	Schedule(ctx context.Context, req calendar.Request) (*calendar.Outcome, error)
}

// Deps aggregates the collaborators shared across all stages.
type Deps struct {
	Fetcher    JobFetcher
	Extractor  DocumentExtractor
	Similarity SimilarityScorer
	Evaluator  ai.Evaluator
	Policy     *decision.Policy
	Scheduler  InterviewScheduler
	Logger     *zap.Logger
}

type Request struct {
	ResumePath     string
	JobURL         string
	PreferredTime  string
	CandidateEmail string
	JobTitle       string
}

// wantsScheduling reports whether the caller asked for an interview booking.
func (r Request) wantsScheduling() bool {
	return strings.TrimSpace(r.PreferredTime) != "" && strings.TrimSpace(r.CandidateEmail) != ""
}

// State is shared by the stages of one run. Every stage reads the results of
// the previous ones and writes its own.
type State struct {
	Request    Request
	Job        *jobpost.Posting
	Document   *extract.Document
	Similarity *float64
	Evaluation *ai.Evaluation
	Decision   decision.Decision
	Reason     string
	Scheduling *calendar.Outcome

	gated bool
}

type Output struct {
	RunID      uuid.UUID
	Job        *jobpost.Posting
	Document   *extract.Document
	Similarity *float64
	Evaluation *ai.Evaluation
	Decision   decision.Decision
	Reason     string
	Scheduling *calendar.Outcome
	Stages     []StageReport
}

// Scheduled reports whether an interview was booked.
func (o *Output) Scheduled() bool {
	return o != nil && o.Scheduling != nil && o.Scheduling.Status == calendar.StatusSuccess
}

// Stage is a single step of the pipeline.
type Stage interface {
	Name() string
	Run(ctx context.Context, state *State) error
}

type StageStatus string

const (
	StatusOK      StageStatus = "ok"
	StatusSkipped StageStatus = "skipped"
	StatusFailed  StageStatus = "failed"
)

// StageReport describes the result of executing a stage.
type StageReport struct {
	Name     string
	Status   StageStatus
	Reason   string
	Duration time.Duration
}

type Kind string

const (
	KindFetch      Kind = "fetch_failure"
	KindExtraction Kind = "extraction_failure"
	KindScoring    Kind = "scoring_failure"
	KindDecision   Kind = "decision_failure"
	KindScheduling Kind = "scheduling_failure"
)

// StageError is returned by Run when a stage fails. Later stages are not run.
type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type skipError struct {
	reason string
}

func (e *skipError) Error() string { return "skipped: " + e.reason }

// Skip ends a stage without failing the run.
func Skip(reason string) error {
	return &skipError{reason: reason}
}

type Option func(*Pipeline)

// WithSimilarityGate rejects candidates scoring below threshold without
// asking the evaluator.
func WithSimilarityGate(threshold float64) Option {
	return func(p *Pipeline) {
		p.gate = true
		p.threshold = threshold
	}
}

type Pipeline struct {
	deps      Deps
	gate      bool
	threshold float64
	logger    *zap.Logger
	newRunID  func() uuid.UUID
}

func New(deps Deps, opts ...Option) (*Pipeline, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("job fetcher is required")
	}
	if deps.Extractor == nil {
		return nil, errors.New("document extractor is required")
	}
	if deps.Evaluator == nil {
		return nil, errors.New("evaluator is required")
	}
	if deps.Policy == nil {
		deps.Policy = decision.Default()
	}

	p := &Pipeline{
		deps:     deps,
		logger:   logger.OrNop(deps.Logger),
		newRunID: uuid.New,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Stages returns the stages a run of req executes, in order.
func (p *Pipeline) Stages(req Request) []Stage {
	stages := []Stage{
		&fetchStage{fetcher: p.deps.Fetcher},
		&extractStage{extractor: p.deps.Extractor},
		&similarityStage{scorer: p.deps.Similarity, gate: p.gate, threshold: p.threshold},
		&evaluateStage{evaluator: p.deps.Evaluator},
		&decideStage{policy: p.deps.Policy},
	}

	if req.wantsScheduling() {
		stages = append(stages, &scheduleStage{scheduler: p.deps.Scheduler})
	}

	return stages
}

// Run executes the stages sequentially. On failure the partial output is
// returned together with a *StageError.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Output, error) {
	runID := p.newRunID()
	log := p.logger.With(logger.RunFields(runID.String(), req.ResumePath, req.JobURL)...)

	state := &State{Request: req}
	out := &Output{RunID: runID}

	var runErr error
	for _, stage := range p.Stages(req) {
		started := time.Now()
		err := stage.Run(ctx, state)

		report := StageReport{Name: stage.Name(), Status: StatusOK, Duration: time.Since(started)}

		var skip *skipError
		switch {
		case err == nil:
		case errors.As(err, &skip):
			report.Status = StatusSkipped
			report.Reason = skip.reason
		default:
			report.Status = StatusFailed
			report.Reason = err.Error()
			runErr = &StageError{Stage: stage.Name(), Kind: kindOf(stage.Name()), Err: err}
		}

		out.Stages = append(out.Stages, report)

		fields := []zap.Field{
			zap.String("name", report.Name),
			zap.String("status", string(report.Status)),
			zap.Duration("duration", report.Duration),
		}
		if report.Reason != "" {
			fields = append(fields, zap.String("reason", report.Reason))
		}
		if report.Status == StatusFailed {
			log.Warn("pipeline step", fields...)
			break
		}
		log.Info("pipeline step", fields...)
	}

	out.Job = state.Job
	out.Document = state.Document
	out.Similarity = state.Similarity
	out.Evaluation = state.Evaluation
	out.Decision = state.Decision
	out.Reason = state.Reason
	out.Scheduling = state.Scheduling

	if runErr != nil {
		return out, runErr
	}

	log.Info("pipeline finished",
		zap.String("decision", string(out.Decision)),
		zap.Bool("scheduled", out.Scheduled()),
	)

	return out, nil
}

func kindOf(stage string) Kind {
	switch stage {
	case StageFetchJob:
		return KindFetch
	case StageExtractResume:
		return KindExtraction
	case StageDecide:
		return KindDecision
	case StageSchedule:
		return KindScheduling
	default:
		return KindScoring
	}
}

// Status represents runtime information about a stage.
type Status struct {
	Name    string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// Describe returns status entries for the provided stages.
func Describe(stages []Stage) []Status {
	statuses := make([]Status, 0, len(stages))
	for _, stage := range stages {
		if reporter, ok := stage.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}
		statuses = append(statuses, Status{Name: stage.Name()})
	}
	return statuses
}
