package ai

import "context"

// GradingInput is the material a grader sees when scoring a submission.
type GradingInput struct {
	AssignmentTitle string
	Instructions    string
	SubmissionType  string
	Content         string
	FileURL         string
	MaxScore        float64
	LateSubmission  bool
}

// GradingSuggestion is a proposed score and feedback. It is advisory only.
type GradingSuggestion struct {
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"max_score"`
	Feedback   string  `json:"feedback"`
	Confidence float64 `json:"confidence"`
}

// GradingAssistant proposes grades for human graders to review.
type GradingAssistant interface {
	Suggest(ctx context.Context, input GradingInput) (GradingSuggestion, error)
	Provider() string
}
