package domain

import "time"

// SurveyType classifies a survey. Only scored types can run through the assessment flow.
type SurveyType string

const (
	SurveyAssessment SurveyType = "assessment"
	SurveyQuiz       SurveyType = "quiz"
	SurveyIQ         SurveyType = "iq"
	SurveyOnboarding SurveyType = "onboarding"
)

// Assessable reports whether surveys of this type can be taken as a timed, graded assessment.
func (t SurveyType) Assessable() bool {
	switch t {
	case SurveyAssessment, SurveyQuiz, SurveyIQ, SurveyOnboarding:
		return true
	}
	return false
}

// SourceType tells where a survey's questions come from.
type SourceType string

const (
	SourceManual            SourceType = "manual"
	SourceQuestionBank      SourceType = "question_bank"
	SourceMultiQuestionBank SourceType = "multi_question_bank"
	SourceManualSelection   SourceType = "manual_selection"
)

// BankBased reports whether questions must be drawn from a bank rather than read from the survey.
func (s SourceType) BankBased() bool {
	switch s {
	case SourceQuestionBank, SourceMultiQuestionBank, SourceManualSelection:
		return true
	}
	return false
}

// ScoringMode selects how points turn into a display score and a verdict.
type ScoringMode string

const (
	ScoringPercentage  ScoringMode = "percentage"
	ScoringAccumulated ScoringMode = "accumulated"
)

// ScoringSettings configures grading and what the candidate gets to see afterwards.
type ScoringSettings struct {
	ScoringMode           ScoringMode `json:"scoringMode"`
	PassingThreshold      float64     `json:"passingThreshold"`
	DefaultQuestionPoints int         `json:"defaultQuestionPoints"`
	ShowScore             bool        `json:"showScore"`
	ShowBreakdown         bool        `json:"showBreakdown"`
	ShowCorrectAnswers    bool        `json:"showCorrectAnswers"`
}

// Survey is the read-only definition a session runs against.
// Questions are only meaningful when SourceType is manual.
type Survey struct {
	ID               string          `json:"id"`
	Slug             string          `json:"slug"`
	Title            string          `json:"title"`
	Type             SurveyType      `json:"type"`
	SourceType       SourceType      `json:"sourceType"`
	TimeLimitMinutes int             `json:"timeLimitMinutes"`
	Questions        []Question      `json:"questions,omitempty"`
	ScoringSettings  ScoringSettings `json:"scoringSettings"`
}

// TimeLimitSeconds returns the countdown length, 0 when the survey is untimed.
func (s Survey) TimeLimitSeconds() int {
	if s.TimeLimitMinutes <= 0 {
		return 0
	}
	return s.TimeLimitMinutes * 60
}

// QuestionType is the answer shape a question expects.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	ShortText      QuestionType = "short_text"
)

// Option is one selectable choice. It decodes from a plain label or a {text, image} pair.
type Option struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// Question is a single item of an assessment.
type Question struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	Description   string        `json:"description,omitempty"`
	Image         string        `json:"image,omitempty"`
	Type          QuestionType  `json:"type"`
	Options       []Option      `json:"options,omitempty"`
	CorrectAnswer CorrectAnswer `json:"correctAnswer"`
	Points        int           `json:"points,omitempty"`
}

// CorrectAnswerKind tags which field of CorrectAnswer is populated.
type CorrectAnswerKind int

const (
	CorrectNone CorrectAnswerKind = iota
	CorrectIndex
	CorrectIndices
	CorrectText
)

// CorrectAnswer is the declared key of a question: an option index, a set of option
// indices, or a literal string.
type CorrectAnswer struct {
	Kind    CorrectAnswerKind
	Index   int
	Indices []int
	Text    string
}

// IndexAnswer builds an index-valued key.
func IndexAnswer(i int) CorrectAnswer { return CorrectAnswer{Kind: CorrectIndex, Index: i} }

// IndicesAnswer builds a set-of-indices key.
func IndicesAnswer(idx ...int) CorrectAnswer {
	return CorrectAnswer{Kind: CorrectIndices, Indices: idx}
}

// TextAnswer builds a literal string key.
func TextAnswer(s string) CorrectAnswer { return CorrectAnswer{Kind: CorrectText, Text: s} }

// AnswerValue is what a candidate entered for one question.
// Multi is set for multiple-choice answers, which carry Choices instead of Text.
type AnswerValue struct {
	Text    string
	Choices []string
	Multi   bool
}

// TextValue wraps a single-choice or short-text answer.
func TextValue(s string) AnswerValue { return AnswerValue{Text: s} }

// ChoicesValue wraps a multiple-choice answer.
func ChoicesValue(choices ...string) AnswerValue {
	return AnswerValue{Choices: append([]string(nil), choices...), Multi: true}
}

// IsSkip reports whether the value is the explicit empty-string skip marker.
func (v AnswerValue) IsSkip() bool { return !v.Multi && v.Text == "" }

// QuestionTiming records how long a candidate spent on one question, summed over visits.
type QuestionTiming struct {
	QuestionID      string     `json:"questionId"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	DurationSeconds int        `json:"durationSeconds"`
	Visits          int        `json:"visits"`
}

// ScoringResult is the aggregate grade of a session.
type ScoringResult struct {
	TotalPoints        int         `json:"totalPoints"`
	MaxPossiblePoints  int         `json:"maxPossiblePoints"`
	CorrectCount       int         `json:"correctCount"`
	WrongCount         int         `json:"wrongCount"`
	DisplayScore       float64     `json:"displayScore"`
	Passed             bool        `json:"passed"`
	ScoringMode        ScoringMode `json:"scoringMode"`
	ScoringDescription string      `json:"scoringDescription"`
}

// AssessmentResult is the per-question grading line.
type AssessmentResult struct {
	QuestionID        string `json:"questionId"`
	QuestionText      string `json:"questionText"`
	UserAnswer        string `json:"userAnswer"`
	CorrectAnswerText string `json:"correctAnswerText,omitempty"`
	IsCorrect         bool   `json:"isCorrect"`
	PointsAwarded     int    `json:"pointsAwarded"`
	MaxPoints         int    `json:"maxPoints"`
}

// Report bundles everything computed at submission. It is never mutated afterwards.
type Report struct {
	Scoring ScoringResult      `json:"scoring"`
	Results []AssessmentResult `json:"results,omitempty"`
	Timings []QuestionTiming   `json:"timings,omitempty"`
}

// Submission is the payload sent to the responses endpoint.
// Answers are ordered like the resolved question list.
type Submission struct {
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	SurveyID string        `json:"surveyId"`
	Answers  []AnswerValue `json:"answers"`
}

// Candidate identifies the person taking the assessment.
type Candidate struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
}

// Phase is the state of a session.
type Phase string

const (
	PhaseInstructions Phase = "instructions"
	PhaseQuestions    Phase = "questions"
	PhaseResults      Phase = "results"
)

// Trigger names what started a submission.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerTimer  Trigger = "timer"
)

// QuestionView is a question as shown to the candidate; the key is never included.
type QuestionView struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	Description string       `json:"description,omitempty"`
	Image       string       `json:"image,omitempty"`
	Type        QuestionType `json:"type"`
	Options     []Option     `json:"options,omitempty"`
	Points      int          `json:"points,omitempty"`
}

// View strips the correct answer from q.
func (q Question) View() QuestionView {
	return QuestionView{
		ID:          q.ID,
		Text:        q.Text,
		Description: q.Description,
		Image:       q.Image,
		Type:        q.Type,
		Options:     q.Options,
		Points:      q.Points,
	}
}

// SessionView is a read-only snapshot of a session for clients.
type SessionView struct {
	SessionID        string        `json:"sessionId,omitempty"`
	SurveyID         string        `json:"surveyId"`
	Title            string        `json:"title,omitempty"`
	Phase            Phase         `json:"phase"`
	QuestionsReady   bool          `json:"questionsReady"`
	CurrentIndex     int           `json:"currentIndex"`
	TotalQuestions   int           `json:"totalQuestions"`
	Current          *QuestionView `json:"current,omitempty"`
	CurrentAnswer    *AnswerValue  `json:"currentAnswer,omitempty"`
	TimeLimited      bool          `json:"timeLimited"`
	RemainingSeconds int           `json:"remainingSeconds"`
	Submitted        bool          `json:"submitted"`
	SubmitError      string        `json:"submitError,omitempty"`
	Report           *Report       `json:"report,omitempty"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// CompletionEvent is published once a session's submission has been accepted.
type CompletionEvent struct {
	SessionID   string        `json:"sessionId"`
	SurveyID    string        `json:"surveyId"`
	SurveySlug  string        `json:"surveySlug"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Trigger     Trigger       `json:"trigger"`
	Scoring     ScoringResult `json:"scoring"`
	CompletedAt time.Time     `json:"completedAt"`
}
