package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/hr-screener/internal/ai"
	"github.com/spigell/hr-screener/internal/calendar"
	"github.com/spigell/hr-screener/internal/decision"
)

const (
	StageFetchJob      = "fetch_job"
	StageExtractResume = "extract_resume"
	StageSimilarity    = "similarity"
	StageEvaluate      = "evaluate"
	StageDecide        = "decide"
	StageSchedule      = "schedule"

	reasonBelowSimilarity = "similarity below threshold"
)

type fetchStage struct {
	fetcher JobFetcher
}

func (s *fetchStage) Name() string { return StageFetchJob }

func (s *fetchStage) Run(ctx context.Context, state *State) error {
	posting, err := s.fetcher.Fetch(ctx, state.Request.JobURL)
	if err != nil {
		return err
	}
	state.Job = posting
	return nil
}

type extractStage struct {
	extractor DocumentExtractor
}

func (s *extractStage) Name() string { return StageExtractResume }

func (s *extractStage) Run(ctx context.Context, state *State) error {
	doc, err := s.extractor.Extract(ctx, state.Request.ResumePath)
	if err != nil {
		return err
	}
	state.Document = doc
	return nil
}

type similarityStage struct {
	scorer    SimilarityScorer
	gate      bool
	threshold float64
}

func (s *similarityStage) Name() string { return StageSimilarity }

func (s *similarityStage) Run(ctx context.Context, state *State) error {
	if s.scorer == nil {
		return Skip("no embedder configured")
	}

	score, err := s.scorer.Score(ctx, state.Document.Text, state.Job.Text)
	if err != nil {
		return err
	}
	state.Similarity = &score

	if s.gate && score < s.threshold {
		state.gated = true
	}
	return nil
}

func (s *similarityStage) Status() Status {
	return Status{Name: s.Name(), Details: map[string]string{
		"enabled":   strconv.FormatBool(s.scorer != nil),
		"gate":      strconv.FormatBool(s.gate),
		"threshold": strconv.FormatFloat(s.threshold, 'f', -1, 64),
	}}
}

type evaluateStage struct {
	evaluator ai.Evaluator
}

func (s *evaluateStage) Name() string { return StageEvaluate }

func (s *evaluateStage) Run(ctx context.Context, state *State) error {
	if state.gated {
		return Skip(reasonBelowSimilarity)
	}

	evaluation, err := s.evaluator.Evaluate(ctx, state.Document.Text, state.Job.Text)
	if err != nil {
		return err
	}
	state.Evaluation = evaluation
	return nil
}

type decideStage struct {
	policy *decision.Policy
}

func (s *decideStage) Name() string { return StageDecide }

func (s *decideStage) Run(_ context.Context, state *State) error {
	if state.gated {
		state.Decision = decision.Reject
		state.Reason = reasonBelowSimilarity
		return nil
	}
	if state.Evaluation == nil {
		return errors.New("no evaluation to decide on")
	}

	d, err := s.policy.Decide(state.Evaluation.Score)
	if err != nil {
		return err
	}

	state.Decision = d
	state.Reason = fmt.Sprintf("score %d, minimum %d", state.Evaluation.Score, s.policy.MinimumScore())
	return nil
}

func (s *decideStage) Status() Status {
	return Status{Name: s.Name(), Details: map[string]string{
		"minimum_score": strconv.Itoa(s.policy.MinimumScore()),
	}}
}

type scheduleStage struct {
	scheduler InterviewScheduler
}

func (s *scheduleStage) Name() string { return StageSchedule }

func (s *scheduleStage) Run(ctx context.Context, state *State) error {
	if state.Decision != decision.Proceed {
		return Skip("candidate rejected")
	}
	if s.scheduler == nil {
		return errors.New("interview scheduler is not configured")
	}

	title := strings.TrimSpace(state.Request.JobTitle)
	if title == "" && state.Job != nil {
		title = state.Job.Title
	}

	outcome, err := s.scheduler.Schedule(ctx, calendar.Request{
		CandidateEmail: strings.TrimSpace(state.Request.CandidateEmail),
		PreferredTime:  strings.TrimSpace(state.Request.PreferredTime),
		JobTitle:       title,
	})
	state.Scheduling = outcome
	return err
}
