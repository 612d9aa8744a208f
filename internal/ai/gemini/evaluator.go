package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/hr-screener/internal/ai"
	"github.com/spigell/hr-screener/internal/logger"
	"github.com/spigell/hr-screener/internal/utils"
)

type contentGenerator interface {
	GenerateJSON(ctx context.Context, system, prompt string, schema *genai.Schema) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200

	systemInstruction = "You evaluate resumes against job postings and answer only with JSON that matches the response schema."
)

var ErrMalformedResponse = errors.New("malformed evaluation response")

var evaluationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"score": {
			Type:        genai.TypeInteger,
			Description: "Fit score from 0 to 100.",
		},
		"summary": {
			Type:        genai.TypeString,
			Description: "Short rationale covering strengths, gaps and a recommendation.",
		},
	},
	Required: []string{"score", "summary"},
}

type Evaluator struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewEvaluator(generator contentGenerator, maxLogLength int, l *zap.Logger) *Evaluator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Evaluator{
		generator: generator,
		logger:    logger.OrNop(l),
		maxLogLen: maxLogLength,
	}
}

func (e *Evaluator) Evaluate(ctx context.Context, resumeText, jobText string) (*ai.Evaluation, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, errors.New("resume text is required")
	}
	if strings.TrimSpace(jobText) == "" {
		return nil, errors.New("job text is required")
	}

	prompt := buildPrompt(resumeText, jobText)

	e.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateJSON(ctx, systemInstruction, prompt, evaluationSchema)
	if err != nil {
		return nil, ai.ScoringError("evaluate", err)
	}

	e.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	evaluation, err := parseResponse(raw)
	if err != nil {
		return nil, ai.ScoringError("evaluate", err)
	}

	evaluation.Raw = raw
	return evaluation, nil
}

func buildPrompt(resumeText, jobText string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Job posting:\n{{JOB}}\n\nResume:\n{{RESUME}}\n\nJSON Response:"
	}
	// single pass: placeholders inside the inputs are left as they are
	return strings.NewReplacer(
		"{{JOB}}", strings.TrimSpace(jobText),
		"{{RESUME}}", strings.TrimSpace(resumeText),
	).Replace(template)
}

type evaluationPayload struct {
	Score   float64 `mapstructure:"score"`
	Summary string  `mapstructure:"summary"`
}

func parseResponse(raw string) (*ai.Evaluation, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if data["score"] == nil {
		return nil, fmt.Errorf("%w: score is missing", ErrMalformedResponse)
	}

	var payload evaluationPayload
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &payload,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if math.IsNaN(payload.Score) || payload.Score < 0 || payload.Score > 100 {
		return nil, fmt.Errorf("%w: score %v is outside 0..100", ErrMalformedResponse, payload.Score)
	}

	summary := strings.TrimSpace(payload.Summary)
	if summary == "" {
		return nil, fmt.Errorf("%w: summary is empty", ErrMalformedResponse)
	}

	return &ai.Evaluation{
		Score:   int(math.Round(payload.Score)),
		Summary: summary,
	}, nil
}

// extractJSON strips code fences and any prose around the outermost object.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start != -1 && end > start {
		raw = raw[start : end+1]
	}

	return strings.TrimSpace(raw)
}
