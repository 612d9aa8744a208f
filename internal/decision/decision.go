// Package decision turns an evaluation score into a hiring decision.
package decision

import (
	"errors"
	"fmt"
)

// DefaultMinimumPassingScore is the lowest score that still proceeds to an interview.
const DefaultMinimumPassingScore = 80

const (
	MinScore = 0
	MaxScore = 100
)

var ErrScoreOutOfRange = errors.New("score out of range")

type Decision string

const (
	Proceed Decision = "proceed"
	Reject  Decision = "reject"
)

// Label returns the human readable form shown to recruiters.
func (d Decision) Label() string {
	switch d {
	case Proceed:
		return "Proceed with interview"
	case Reject:
		return "Reject"
	default:
		return string(d)
	}
}

func (d Decision) String() string { return d.Label() }

// Parse accepts both the short form and the label.
func Parse(s string) (Decision, error) {
	switch s {
	case string(Proceed), Proceed.Label():
		return Proceed, nil
	case string(Reject), Reject.Label():
		return Reject, nil
	default:
		return "", fmt.Errorf("unknown decision %q", s)
	}
}

type Policy struct {
	minimum int
}

// NewPolicy returns a policy with the given passing threshold. Zero selects the default.
func NewPolicy(minimum int) (*Policy, error) {
	if minimum == 0 {
		minimum = DefaultMinimumPassingScore
	}
	if minimum < MinScore || minimum > MaxScore {
		return nil, fmt.Errorf("minimum passing score %d: %w", minimum, ErrScoreOutOfRange)
	}
	return &Policy{minimum: minimum}, nil
}

// Default returns the policy with DefaultMinimumPassingScore.
func Default() *Policy {
	return &Policy{minimum: DefaultMinimumPassingScore}
}

func (p *Policy) MinimumScore() int { return p.minimum }

// Decide returns Proceed when score reaches the threshold. Scores outside
// [0,100] are refused rather than clamped.
func (p *Policy) Decide(score int) (Decision, error) {
	if score < MinScore || score > MaxScore {
		return Reject, fmt.Errorf("decide on %d: %w", score, ErrScoreOutOfRange)
	}

	if score >= p.minimum {
		return Proceed, nil
	}
	return Reject, nil
}
