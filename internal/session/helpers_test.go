package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"assessment-engine/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// silentTicks never ticks; tests drive the timer through Tick.
func silentTicks(time.Duration) (<-chan time.Time, func()) {
	return nil, func() {}
}

type countingSubmitter struct {
	calls atomic.Int32
	mu    sync.Mutex
	last  domain.Submission
	err   error
}

func (s *countingSubmitter) Submit(_ context.Context, sub domain.Submission) error {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = sub
	return s.err
}

func (s *countingSubmitter) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *countingSubmitter) lastSubmission() domain.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

type countingBank struct {
	calls     atomic.Int32
	questions []domain.Question
	byEmail   map[string][]domain.Question
	err       error
	release   chan struct{}

	mu     sync.Mutex
	emails []string
}

func (b *countingBank) DrawQuestions(ctx context.Context, _, email string) ([]domain.Question, error) {
	b.calls.Add(1)
	b.mu.Lock()
	b.emails = append(b.emails, email)
	b.mu.Unlock()
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	if qs, ok := b.byEmail[email]; ok {
		return qs, nil
	}
	return b.questions, nil
}

func (b *countingBank) drawnFor() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.emails...)
}

var errUpstream = errors.New("upstream unavailable")

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            "q1",
			Text:          "Which is B?",
			Type:          domain.SingleChoice,
			Options:       []domain.Option{{Text: "A"}, {Text: "B"}, {Text: "C"}},
			CorrectAnswer: domain.IndexAnswer(1),
		},
		{
			ID:            "q2",
			Text:          "Pick A and C",
			Type:          domain.MultipleChoice,
			Options:       []domain.Option{{Text: "A"}, {Text: "B"}, {Text: "C"}, {Text: "D"}},
			CorrectAnswer: domain.IndicesAnswer(0, 2),
		},
		{
			ID:            "q3",
			Text:          "Capital of France",
			Type:          domain.ShortText,
			CorrectAnswer: domain.TextAnswer("Paris"),
		},
	}
}

func manualSurvey(timeLimitMinutes int) domain.Survey {
	return domain.Survey{
		ID:               "survey-1",
		Slug:             "go-basics",
		Title:            "Go basics",
		Type:             domain.SurveyQuiz,
		SourceType:       domain.SourceManual,
		TimeLimitMinutes: timeLimitMinutes,
		Questions:        sampleQuestions(),
		ScoringSettings: domain.ScoringSettings{
			ScoringMode:      domain.ScoringPercentage,
			PassingThreshold: 60,
			ShowScore:        true,
			ShowBreakdown:    true,
		},
	}
}

func bankSurvey() domain.Survey {
	s := manualSurvey(0)
	s.SourceType = domain.SourceQuestionBank
	s.Questions = []domain.Question{{ID: "embedded-never-used"}}
	return s
}
