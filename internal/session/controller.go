// Package session implements the candidate-side assessment engine: question resolution,
// navigation with dwell-time tracking, the countdown and a single guarded submission.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"assessment-engine/internal/domain"
	"assessment-engine/internal/scoring"
)

// Submitter delivers a finished assessment to the responses endpoint.
type Submitter interface {
	Submit(ctx context.Context, submission domain.Submission) error
}

// Hooks are called outside the controller's lock.
type Hooks struct {
	OnTick         func(remaining int)
	OnSubmitted    func(report domain.Report, trigger domain.Trigger)
	OnSubmitFailed func(err error, trigger domain.Trigger)
}

// Config wires a Controller to its collaborators.
type Config struct {
	Survey     domain.Survey
	Bank       QuestionBank
	Submitter  Submitter
	Clock      func() time.Time
	TickSource TickSource
	Hooks      Hooks
}

// Controller owns one candidate's session: phase, position, answers, timings, the timer and
// the submission latch. All state changes go through its methods.
type Controller struct {
	mu        sync.Mutex
	survey    domain.Survey
	phase     domain.Phase
	index     int
	candidate domain.Candidate
	closed    bool

	source    *QuestionSource
	answers   *AnswerStore
	timings   *TimingTracker
	timer     *Timer
	guard     SubmissionGuard
	submitter Submitter
	now       func() time.Time
	ticks     TickSource
	hooks     Hooks

	lifetime context.Context
	stop     context.CancelFunc

	report    *domain.Report
	pending   *domain.Submission
	submitErr error
	retrying  bool
}

func NewController(cfg Config) *Controller {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	ticks := cfg.TickSource
	if ticks == nil {
		ticks = tickerSource
	}
	lifetime, stop := context.WithCancel(context.Background())
	return &Controller{
		survey:    cfg.Survey,
		phase:     domain.PhaseInstructions,
		source:    NewQuestionSource(cfg.Survey, cfg.Bank),
		answers:   NewAnswerStore(),
		timings:   NewTimingTracker(now),
		submitter: cfg.Submitter,
		now:       now,
		ticks:     ticks,
		hooks:     cfg.Hooks,
		lifetime:  lifetime,
		stop:      stop,
	}
}

// Survey returns the definition the session runs against.
func (c *Controller) Survey() domain.Survey {
	return c.survey
}

// Phase returns the current phase.
func (c *Controller) Phase() domain.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// ResolveQuestions fetches a bank draw ahead of Start, e.g. once the email field is filled in.
// Changing the email before Start draws again for the new address.
func (c *Controller) ResolveQuestions(ctx context.Context, email string) ([]domain.Question, error) {
	c.mu.Lock()
	if err := c.startableLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()
	return c.source.Resolve(ctx, email)
}

// Start moves the session from instructions to questions. Bank-based surveys block on the
// question draw; if it fails the session stays in instructions and Start may be called again.
func (c *Controller) Start(ctx context.Context, name, email string) error {
	candidate := domain.Candidate{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}

	c.mu.Lock()
	if err := c.startableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if candidate.Name == "" || candidate.Email == "" {
		c.mu.Unlock()
		return domain.ErrCandidateRequired
	}
	c.mu.Unlock()

	if _, err := c.source.Resolve(ctx, candidate.Email); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// The draw may complete after the session was torn down or started elsewhere.
	if err := c.startableLocked(); err != nil {
		return err
	}
	questions, ok := c.source.Freeze(candidate.Email)
	if !ok {
		return fmt.Errorf("draw for %s was replaced while starting: %w", c.survey.Slug, domain.ErrQuestionsUnavailable)
	}
	if len(questions) == 0 {
		return fmt.Errorf("survey %s has no questions: %w", c.survey.Slug, domain.ErrQuestionsUnavailable)
	}

	c.candidate = candidate
	c.phase = domain.PhaseQuestions
	c.index = 0
	if limit := c.survey.TimeLimitSeconds(); limit > 0 {
		c.timer = NewTimer(limit, c.expire, WithTickSource(c.ticks), OnTick(c.hooks.OnTick))
		if err := c.timer.Arm(c.lifetime); err != nil {
			return err
		}
	}
	c.timings.Open(questions[0].ID)
	return nil
}

func (c *Controller) startableLocked() error {
	if c.closed {
		return domain.ErrSessionClosed
	}
	if c.phase != domain.PhaseInstructions {
		return domain.ErrInvalidPhase
	}
	return nil
}

// activeLocked guards answer and navigation calls.
func (c *Controller) activeLocked() error {
	if c.closed {
		return domain.ErrSessionClosed
	}
	if c.phase != domain.PhaseQuestions || c.guard.Fired() {
		return domain.ErrInvalidPhase
	}
	return nil
}

// SetAnswer records the candidate's answer for a question of the resolved list.
func (c *Controller) SetAnswer(questionID string, value domain.AnswerValue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.activeLocked(); err != nil {
		return err
	}
	questions, _ := c.source.Questions()
	for _, q := range questions {
		if q.ID == questionID {
			c.answers.Set(questionID, value)
			return nil
		}
	}
	return domain.ErrQuestionNotFound
}

// Next advances one question. It does nothing on the last question.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.activeLocked(); err != nil {
		return err
	}
	c.moveLocked(1)
	return nil
}

// Previous goes back one question without touching answers. It does nothing on the first question.
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.activeLocked(); err != nil {
		return err
	}
	c.moveLocked(-1)
	return nil
}

// Skip marks the current question as skipped unless it already has an answer, then advances.
func (c *Controller) Skip() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.activeLocked(); err != nil {
		return err
	}
	questions, _ := c.source.Questions()
	c.answers.MarkSkippedIfUnset(questions[c.index].ID)
	c.moveLocked(1)
	return nil
}

func (c *Controller) moveLocked(step int) {
	questions, _ := c.source.Questions()
	target := c.index + step
	if target < 0 || target >= len(questions) {
		return
	}
	c.timings.Close(questions[c.index].ID)
	c.index = target
	c.timings.Open(questions[target].ID)
}

// Submit grades and delivers the assessment. Only the first submission of a session runs,
// whether it comes from here or from timer expiry; later calls return nil without effect.
func (c *Controller) Submit(ctx context.Context) error {
	return c.submit(ctx, domain.TriggerManual)
}

// expire is the timer's expiry hook. Failures reach the client through OnSubmitFailed.
func (c *Controller) expire() {
	_ = c.submit(c.lifetime, domain.TriggerTimer)
}

func (c *Controller) submit(ctx context.Context, trigger domain.Trigger) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if trigger == domain.TriggerManual {
			return domain.ErrSessionClosed
		}
		return nil
	}
	switch c.phase {
	case domain.PhaseResults:
		c.mu.Unlock()
		return nil
	case domain.PhaseInstructions:
		c.mu.Unlock()
		return domain.ErrInvalidPhase
	}
	// Latch check-and-set happens before anything can block.
	if !c.guard.TryAcquire(trigger) {
		c.mu.Unlock()
		return nil
	}

	c.timings.CloseCurrent()
	questions, _ := c.source.Questions()
	report := scoring.Grade(questions, c.answers.Snapshot(), c.survey.ScoringSettings)
	report.Timings = c.timings.Snapshot()
	submission := domain.Submission{
		Name:     c.candidate.Name,
		Email:    c.candidate.Email,
		SurveyID: c.survey.ID,
		Answers:  c.answers.Ordered(questions),
	}
	c.report = &report
	c.pending = &submission
	c.mu.Unlock()

	return c.deliver(ctx, submission, trigger)
}

func (c *Controller) deliver(ctx context.Context, submission domain.Submission, trigger domain.Trigger) error {
	var err error
	if c.submitter != nil {
		err = c.submitter.Submit(ctx, submission)
	}

	c.mu.Lock()
	c.retrying = false
	timer := c.timer
	if err != nil {
		c.submitErr = fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, err)
		failed := c.submitErr
		c.mu.Unlock()
		cancelTimer(timer)
		if c.hooks.OnSubmitFailed != nil {
			c.hooks.OnSubmitFailed(failed, trigger)
		}
		return failed
	}
	c.phase = domain.PhaseResults
	c.pending = nil
	c.submitErr = nil
	report := *c.report
	c.mu.Unlock()
	cancelTimer(timer)

	if c.hooks.OnSubmitted != nil {
		c.hooks.OnSubmitted(report, trigger)
	}
	return nil
}

func cancelTimer(t *Timer) {
	if t != nil {
		t.Cancel()
	}
}

// RetrySubmission resends the already graded submission after a delivery failure.
// It is only ever invoked by an explicit candidate action.
func (c *Controller) RetrySubmission(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if c.pending == nil || c.submitErr == nil || c.retrying {
		c.mu.Unlock()
		return domain.ErrNothingToRetry
	}
	c.retrying = true
	submission := *c.pending
	c.mu.Unlock()

	return c.deliver(ctx, submission, domain.TriggerManual)
}

// Close tears the session down and stops the timer. It is safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Cancel()
	}
	c.stop()
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Report returns the graded report once the session reached results.
func (c *Controller) Report() (domain.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != domain.PhaseResults || c.report == nil {
		return domain.Report{}, false
	}
	return *c.report, true
}

// Answer returns the stored answer for questionID.
func (c *Controller) Answer(questionID string) (domain.AnswerValue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.Get(questionID)
}

// Timings returns the dwell-time entries recorded so far.
func (c *Controller) Timings() []domain.QuestionTiming {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timings.Snapshot()
}

// Candidate returns who started the session.
func (c *Controller) Candidate() domain.Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.candidate
}

// SubmittedBy returns the trigger that won the submission latch.
func (c *Controller) SubmittedBy() domain.Trigger {
	return c.guard.Trigger()
}

// Snapshot renders the session for a client. The correct answers are never included.
func (c *Controller) Snapshot() domain.SessionView {
	c.mu.Lock()
	defer c.mu.Unlock()

	questions, ready := c.source.Questions()
	view := domain.SessionView{
		SurveyID:       c.survey.ID,
		Title:          c.survey.Title,
		Phase:          c.phase,
		QuestionsReady: ready,
		CurrentIndex:   c.index,
		TotalQuestions: len(questions),
		TimeLimited:    c.survey.TimeLimitSeconds() > 0,
		Submitted:      c.guard.Fired(),
		UpdatedAt:      c.now(),
	}
	if view.TimeLimited {
		view.RemainingSeconds = c.survey.TimeLimitSeconds()
		if c.timer != nil {
			view.RemainingSeconds = c.timer.Remaining()
		}
	}
	if c.phase == domain.PhaseQuestions && c.index < len(questions) {
		q := questions[c.index]
		qv := q.View()
		view.Current = &qv
		if v, ok := c.answers.Get(q.ID); ok {
			view.CurrentAnswer = &v
		}
	}
	if c.submitErr != nil {
		view.SubmitError = c.submitErr.Error()
	}
	if c.phase == domain.PhaseResults && c.report != nil {
		redacted := scoring.Redact(*c.report, c.survey.ScoringSettings)
		view.Report = &redacted
	}
	return view
}
