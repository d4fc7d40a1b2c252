package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"assessment-engine/internal/domain"
)

// QuestionBank draws a personalized question list for a candidate.
type QuestionBank interface {
	DrawQuestions(ctx context.Context, surveySlug, email string) ([]domain.Question, error)
}

// QuestionSource resolves the effective question list of one session.
// Manual surveys are ready immediately; bank-based surveys wait for Resolve.
type QuestionSource struct {
	survey domain.Survey
	bank   QuestionBank
	sf     singleflight.Group

	mu        sync.Mutex
	questions []domain.Question
	email     string // normalized address the cached draw belongs to
	ready     bool
	frozen    bool
}

func NewQuestionSource(survey domain.Survey, bank QuestionBank) *QuestionSource {
	s := &QuestionSource{survey: survey, bank: bank}
	if !survey.SourceType.BankBased() {
		s.questions = append([]domain.Question(nil), survey.Questions...)
		s.ready = true
	}
	return s
}

// Questions returns the resolved list and whether resolution has happened.
func (s *QuestionSource) Questions() ([]domain.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions, s.ready
}

// cached returns the list when it is valid for the normalized email.
// Manual lists are valid for everyone.
func (s *QuestionSource) cached(email string) ([]domain.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, false
	}
	if !s.survey.SourceType.BankBased() || s.email == email {
		return s.questions, true
	}
	return nil, false
}

// Resolve fetches the candidate's draw and caches it for the session, keyed by email.
// Repeated calls for the same email, concurrent or not, share one fetch; a different
// email draws again and replaces the cache. A failed fetch keeps the previous state so
// the call can be retried. Once frozen, only the frozen email resolves.
func (s *QuestionSource) Resolve(ctx context.Context, email string) ([]domain.Question, error) {
	email = strings.TrimSpace(email)
	key := normalizeEmail(email)
	if qs, ok := s.cached(key); ok {
		return qs, nil
	}
	if email == "" {
		return nil, domain.ErrEmailRequired
	}
	if s.isFrozen() {
		return nil, domain.ErrInvalidPhase
	}
	if s.bank == nil {
		return nil, fmt.Errorf("no question bank configured: %w", domain.ErrQuestionsUnavailable)
	}

	v, err, _ := s.sf.Do("draw:"+key, func() (interface{}, error) {
		if qs, ok := s.cached(key); ok {
			return qs, nil
		}
		qs, err := s.bank.DrawQuestions(ctx, s.survey.Slug, email)
		if err != nil {
			return nil, fmt.Errorf("draw questions for %s: %w: %w", s.survey.Slug, domain.ErrQuestionsUnavailable, err)
		}
		if len(qs) == 0 {
			return nil, fmt.Errorf("draw questions for %s: empty draw: %w", s.survey.Slug, domain.ErrQuestionsUnavailable)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.frozen {
			return nil, domain.ErrInvalidPhase
		}
		s.questions, s.email, s.ready = qs, key, true
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Question), nil
}

// Freeze pins the cached list for email so later resolves cannot replace it.
// It reports false when the cache holds no list for email.
func (s *QuestionSource) Freeze(email string) ([]domain.Question, bool) {
	key := normalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready || (s.survey.SourceType.BankBased() && s.email != key) {
		return nil, false
	}
	s.frozen = true
	return s.questions, true
}

func (s *QuestionSource) isFrozen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
