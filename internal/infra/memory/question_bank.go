package memory

import (
	"context"
	"fmt"

	"assessment-engine/internal/bank"
	"assessment-engine/internal/domain"
)

// QuestionBank draws personalized questions from pools held in memory.
type QuestionBank struct {
	pools map[string]bank.Pool
}

func NewQuestionBank(pools ...bank.Pool) *QuestionBank {
	b := &QuestionBank{pools: make(map[string]bank.Pool, len(pools))}
	for _, p := range pools {
		b.pools[p.Slug] = p
	}
	return b
}

func (b *QuestionBank) DrawQuestions(_ context.Context, surveySlug, email string) ([]domain.Question, error) {
	pool, ok := b.pools[surveySlug]
	if !ok {
		return nil, fmt.Errorf("question pool %s: %w", surveySlug, domain.ErrSurveyNotFound)
	}
	return bank.Draw(pool, email), nil
}
