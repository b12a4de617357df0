package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	suggestionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "edu",
		Subsystem: "ai",
		Name:      "grading_suggestion_duration_seconds",
		Help:      "Duration of grading suggestion requests",
	}, []string{"model"})

	suggestionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edu",
		Subsystem: "ai",
		Name:      "grading_suggestion_failures_total",
		Help:      "Number of failed grading suggestion requests",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI grading assistant.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIAssistant implements GradingAssistant against the chat completion API.
type OpenAIAssistant struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIAssistant builds an assistant using the provided configuration.
func NewOpenAIAssistant(cfg OpenAIConfig) (*OpenAIAssistant, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIAssistant{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/edu-center-api/pkg/ai/openai"),
		logger: cfg.Logger.With().Str("component", "openai_assistant").Logger(),
	}, nil
}

// Provider names the backing model vendor.
func (a *OpenAIAssistant) Provider() string {
	return "openai"
}

// Suggest asks the model for a score on the submission's own scale.
func (a *OpenAIAssistant) Suggest(parent context.Context, input GradingInput) (GradingSuggestion, error) {
	ctx, span := a.tracer.Start(parent, "openai.suggest_grade", trace.WithAttributes(
		attribute.String("model", a.cfg.Model),
		attribute.Float64("grading.max_score", input.MaxScore),
	))
	defer span.End()

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: graderSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: buildGradingPrompt(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	suggestionDuration.WithLabelValues(a.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return GradingSuggestion{}, a.fail(span, fmt.Errorf("openai suggest: %w", err))
	}
	if len(resp.Choices) == 0 {
		return GradingSuggestion{}, a.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	suggestion, err := ParseSuggestion(resp.Choices[0].Message.Content, input.MaxScore)
	if err != nil {
		return GradingSuggestion{}, a.fail(span, err)
	}

	a.logger.Debug().Int("total_tokens", resp.Usage.TotalTokens).Msg("grading suggestion received")
	return suggestion, nil
}

func (a *OpenAIAssistant) fail(span trace.Span, err error) error {
	suggestionFailures.WithLabelValues(a.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func graderSystemPrompt() string {
	return "You assist a teacher grading coursework. Respond with a JSON object containing ratio (0-1, the share of " +
		"the maximum score earned), feedback addressed to the student, and confidence (0-1)."
}

func buildGradingPrompt(input GradingInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Assignment\n")
	builder.WriteString(input.AssignmentTitle)
	builder.WriteString("\n\n## Instructions\n")
	builder.WriteString(input.Instructions)
	builder.WriteString(fmt.Sprintf("\n\n## Maximum score\n%g", input.MaxScore))
	builder.WriteString("\n\n## Submission (")
	builder.WriteString(input.SubmissionType)
	builder.WriteString(")\n")
	builder.WriteString(input.Content)
	if input.FileURL != "" {
		builder.WriteString("\n\nAttached file: ")
		builder.WriteString(input.FileURL)
	}
	if input.LateSubmission {
		builder.WriteString("\n\nThe submission was handed in after the deadline.")
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

// ParseSuggestion decodes a model reply and scales its ratio onto maxScore.
func ParseSuggestion(content string, maxScore float64) (GradingSuggestion, error) {
	var data struct {
		Ratio      float64 `json:"ratio"`
		Feedback   string  `json:"feedback"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &data); err != nil {
		return GradingSuggestion{}, fmt.Errorf("parse suggestion json: %w", err)
	}

	data.Ratio = clamp01(data.Ratio)
	return GradingSuggestion{
		Score:      data.Ratio * maxScore,
		MaxScore:   maxScore,
		Feedback:   strings.TrimSpace(data.Feedback),
		Confidence: clamp01(data.Confidence),
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
