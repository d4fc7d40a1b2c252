package domain

import "errors"

var (
	// ErrSurveyNotFound is returned when the survey definition could not be loaded.
	ErrSurveyNotFound = errors.New("survey not found")
	// ErrSurveyWrongType is returned for surveys that cannot run as a graded assessment.
	ErrSurveyWrongType = errors.New("survey type does not support assessments")
	// ErrQuestionsUnavailable is returned when the effective question list could not be resolved.
	ErrQuestionsUnavailable = errors.New("questions unavailable")
	// ErrSubmissionFailed is returned when the responses endpoint rejected or never received the submission.
	ErrSubmissionFailed = errors.New("submission failed")

	// ErrSessionNotFound is returned when no session exists for an id.
	ErrSessionNotFound = errors.New("assessment session not found")
	// ErrSessionClosed is returned for operations against a torn-down session.
	ErrSessionClosed = errors.New("assessment session closed")
	// ErrInvalidPhase is returned when an operation is not allowed in the current phase.
	ErrInvalidPhase = errors.New("operation not allowed in current phase")
	// ErrCandidateRequired is returned when start is called without a name or email.
	ErrCandidateRequired = errors.New("candidate name and email are required")
	// ErrEmailRequired is returned when a bank draw is requested without an email.
	ErrEmailRequired = errors.New("candidate email is required to draw questions")
	// ErrQuestionNotFound indicates an answer referenced an unknown question.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrTimerArmed is returned when a timer is armed twice.
	ErrTimerArmed = errors.New("timer already armed")
	// ErrNothingToRetry is returned by a retry when no failed submission is pending.
	ErrNothingToRetry = errors.New("no failed submission to retry")
)

var codes = []struct {
	err  error
	code string
}{
	// wrapping sentinels first: their causes may carry other sentinels
	{ErrQuestionsUnavailable, "questions_unavailable"},
	{ErrSubmissionFailed, "submission_failed"},
	{ErrSurveyNotFound, "survey_not_found"},
	{ErrSurveyWrongType, "survey_wrong_type"},
	{ErrSessionNotFound, "session_not_found"},
	{ErrSessionClosed, "session_closed"},
	{ErrInvalidPhase, "invalid_phase"},
	{ErrCandidateRequired, "candidate_required"},
	{ErrEmailRequired, "email_required"},
	{ErrQuestionNotFound, "question_not_found"},
	{ErrTimerArmed, "timer_armed"},
	{ErrNothingToRetry, "nothing_to_retry"},
}

// Code maps err onto a stable identifier clients can switch on.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
