package memory

import (
	"context"
	"sync"

	"assessment-engine/internal/domain"
)

// ResponseLog is a submitter that keeps accepted submissions in memory.
// It stands in for the responses endpoint when no API is configured.
type ResponseLog struct {
	mu        sync.Mutex
	responses []domain.Submission
}

func NewResponseLog() *ResponseLog {
	return &ResponseLog{}
}

func (l *ResponseLog) Submit(ctx context.Context, submission domain.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	submission.Answers = append([]domain.AnswerValue(nil), submission.Answers...)
	l.mu.Lock()
	l.responses = append(l.responses, submission)
	l.mu.Unlock()
	return nil
}

// Responses returns a copy of everything submitted so far.
func (l *ResponseLog) Responses() []domain.Submission {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Submission(nil), l.responses...)
}
