package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"assessment-engine/internal/domain"
	"assessment-engine/internal/session"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(s *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
}

// SessionToucher is implemented by repositories that expire idle sessions.
// The service refreshes a session on every candidate action.
type SessionToucher interface {
	Touch(ctx context.Context, id string) error
}

// SurveyRepository loads survey definitions (from cache/backing store).
type SurveyRepository interface {
	GetSurvey(ctx context.Context, slug string) (domain.Survey, error)
}

// CompletionPublisher announces accepted submissions to other systems.
type CompletionPublisher interface {
	PublishCompleted(ctx context.Context, event domain.CompletionEvent) error
}

// Option customizes an AssessmentService.
type Option func(*AssessmentService)

// WithPublisher emits a completion event after every accepted submission.
func WithPublisher(p CompletionPublisher) Option {
	return func(s *AssessmentService) { s.publisher = p }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *AssessmentService) { s.logger = l }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *AssessmentService) { s.now = now }
}

// WithTickSource replaces the wall-clock countdown ticker of new sessions.
func WithTickSource(src session.TickSource) Option {
	return func(s *AssessmentService) { s.ticks = src }
}

// WithIDGenerator replaces uuid session ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *AssessmentService) { s.newID = fn }
}

// AssessmentService hosts candidate sessions and exposes the assessment use cases.
type AssessmentService struct {
	sessions  SessionRepository
	surveys   SurveyRepository
	bank      session.QuestionBank
	submitter session.Submitter
	publisher CompletionPublisher
	logger    *slog.Logger
	validate  *validator.Validate
	now       func() time.Time
	ticks     session.TickSource
	newID     func() string
}

func NewAssessmentService(store SessionRepository, surveys SurveyRepository, bank session.QuestionBank, submitter session.Submitter, opts ...Option) *AssessmentService {
	s := &AssessmentService{
		sessions:  store,
		surveys:   surveys,
		bank:      bank,
		submitter: submitter,
		logger:    slog.Default(),
		validate:  validator.New(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id, slug string, controller *session.Controller) *Session {
	return newSession(id, slug, controller, time.Now)
}

// Open creates a session for the survey identified by slug. Only assessable survey types are accepted.
func (s *AssessmentService) Open(ctx context.Context, slug string) (domain.SessionView, error) {
	survey, err := s.surveys.GetSurvey(ctx, slug)
	if err != nil {
		return domain.SessionView{}, err
	}
	if !survey.Type.Assessable() {
		return domain.SessionView{}, fmt.Errorf("survey %s has type %q: %w", slug, survey.Type, domain.ErrSurveyWrongType)
	}

	sess := newSession(s.newID(), slug, nil, s.now)
	sess.controller = session.NewController(session.Config{
		Survey:     survey,
		Bank:       s.bank,
		Submitter:  s.submitter,
		Clock:      s.now,
		TickSource: s.ticks,
		Hooks:      s.hooksFor(sess),
	})
	s.sessions.Put(sess)
	s.logger.Info("session opened", "session_id", sess.id, "survey", slug, "source", survey.SourceType)
	return sess.View(), nil
}

func (s *AssessmentService) hooksFor(sess *Session) session.Hooks {
	return session.Hooks{
		OnTick: func(int) {
			sess.broadcast(UpdateTick)
		},
		OnSubmitted: func(report domain.Report, trigger domain.Trigger) {
			s.logger.Info("assessment submitted",
				"session_id", sess.id,
				"trigger", trigger,
				"score", report.Scoring.DisplayScore,
				"passed", report.Scoring.Passed,
			)
			sess.broadcast(UpdateResults)
			s.publishCompleted(sess, report, trigger)
		},
		OnSubmitFailed: func(err error, trigger domain.Trigger) {
			s.logger.Warn("submission failed", "session_id", sess.id, "trigger", trigger, "error", err)
			sess.broadcast(UpdateSession)
		},
	}
}

func (s *AssessmentService) publishCompleted(sess *Session, report domain.Report, trigger domain.Trigger) {
	if s.publisher == nil {
		return
	}
	candidate := sess.controller.Candidate()
	survey := sess.controller.Survey()
	event := domain.CompletionEvent{
		SessionID:   sess.id,
		SurveyID:    survey.ID,
		SurveySlug:  survey.Slug,
		Name:        candidate.Name,
		Email:       candidate.Email,
		Trigger:     trigger,
		Scoring:     report.Scoring,
		CompletedAt: s.now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.publisher.PublishCompleted(ctx, event); err != nil {
		s.logger.Error("publish completion", "session_id", sess.id, "error", err)
	}
}

// ResolveQuestions draws bank questions for email ahead of Start.
func (s *AssessmentService) ResolveQuestions(ctx context.Context, id, email string) (domain.SessionView, error) {
	return s.apply(ctx, id, func(c *session.Controller) error {
		_, err := c.ResolveQuestions(ctx, email)
		return err
	})
}

// Start validates the candidate and moves the session to its first question.
func (s *AssessmentService) Start(ctx context.Context, id string, candidate domain.Candidate) (domain.SessionView, error) {
	candidate.Name = strings.TrimSpace(candidate.Name)
	candidate.Email = strings.TrimSpace(candidate.Email)
	if err := s.validate.Struct(candidate); err != nil {
		return domain.SessionView{}, fmt.Errorf("%w: %v", domain.ErrCandidateRequired, err)
	}
	view, err := s.apply(ctx, id, func(c *session.Controller) error {
		return c.Start(ctx, candidate.Name, candidate.Email)
	})
	if err == nil {
		s.logger.Info("assessment started", "session_id", id, "total_questions", view.TotalQuestions, "time_limited", view.TimeLimited)
	}
	return view, err
}

// Answer records value for questionID.
func (s *AssessmentService) Answer(ctx context.Context, id, questionID string, value domain.AnswerValue) (domain.SessionView, error) {
	return s.apply(ctx, id, func(c *session.Controller) error {
		return c.SetAnswer(questionID, value)
	})
}

// Next advances to the following question.
func (s *AssessmentService) Next(ctx context.Context, id string) (domain.SessionView, error) {
	return s.apply(ctx, id, (*session.Controller).Next)
}

// Previous goes back one question.
func (s *AssessmentService) Previous(ctx context.Context, id string) (domain.SessionView, error) {
	return s.apply(ctx, id, (*session.Controller).Previous)
}

// Skip marks the current question skipped and advances.
func (s *AssessmentService) Skip(ctx context.Context, id string) (domain.SessionView, error) {
	return s.apply(ctx, id, (*session.Controller).Skip)
}

// Submit grades and delivers the session. Subscribers receive the results through Subscribe.
func (s *AssessmentService) Submit(ctx context.Context, id string) (domain.SessionView, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	if err := sess.controller.Submit(ctx); err != nil {
		return domain.SessionView{}, err
	}
	return sess.View(), nil
}

// RetrySubmission resends a graded submission whose delivery failed.
func (s *AssessmentService) RetrySubmission(ctx context.Context, id string) (domain.SessionView, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	if err := sess.controller.RetrySubmission(ctx); err != nil {
		return domain.SessionView{}, err
	}
	return sess.View(), nil
}

// Snapshot returns the current view of a session.
func (s *AssessmentService) Snapshot(_ context.Context, id string) (domain.SessionView, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	return sess.View(), nil
}

// Subscribe returns a channel that receives session updates, starting with the current view.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *AssessmentService) Subscribe(_ context.Context, id string) (<-chan Update, func(), error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := sess.subscribe()
	return ch, cancel, nil
}

// Close tears the session down: the timer stops, subscribers are released and the session is forgotten.
func (s *AssessmentService) Close(_ context.Context, id string) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return
	}
	sess.close()
	s.sessions.Delete(id)
	s.logger.Info("session closed", "session_id", id, "age", s.now().Sub(sess.CreatedAt()).Round(time.Second))
}

func (s *AssessmentService) apply(ctx context.Context, id string, op func(*session.Controller) error) (domain.SessionView, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	if err := op(sess.controller); err != nil {
		return domain.SessionView{}, err
	}
	s.touch(ctx, id)
	sess.broadcast(UpdateSession)
	return sess.View(), nil
}

func (s *AssessmentService) touch(ctx context.Context, id string) {
	toucher, ok := s.sessions.(SessionToucher)
	if !ok {
		return
	}
	if err := toucher.Touch(ctx, id); err != nil {
		s.logger.Warn("refresh session liveness", "session_id", id, "error", err)
	}
}

// UpdateKind labels a pushed session update.
type UpdateKind string

const (
	UpdateSession UpdateKind = "session"
	UpdateTick    UpdateKind = "tick"
	UpdateResults UpdateKind = "results"
)

// Update is a session snapshot pushed to subscribers.
type Update struct {
	Kind UpdateKind
	View domain.SessionView
}

// Session is one hosted candidate session and its subscribers.
type Session struct {
	id         string
	slug       string
	createdAt  time.Time
	controller *session.Controller

	mu          sync.Mutex
	closed      bool
	subscribers map[chan Update]struct{}
}

func newSession(id, slug string, controller *session.Controller, now func() time.Time) *Session {
	return &Session{
		id:          id,
		slug:        slug,
		createdAt:   now(),
		controller:  controller,
		subscribers: make(map[chan Update]struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// SurveySlug returns the slug the session was opened for.
func (s *Session) SurveySlug() string { return s.slug }

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// View returns the controller snapshot tagged with the session id.
func (s *Session) View() domain.SessionView {
	view := s.controller.Snapshot()
	view.SessionID = s.id
	return view
}

func (s *Session) subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 8)
	initial := Update{Kind: UpdateSession, View: s.View()}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- initial
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcast(kind UpdateKind) {
	update := Update{Kind: kind, View: s.View()}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- update:
		default:
			// Slow subscriber: drop its oldest update so the newest always lands.
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
}

func (s *Session) close() {
	s.controller.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}
