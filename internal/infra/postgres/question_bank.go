package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"assessment-engine/internal/bank"
	"assessment-engine/internal/domain"
)

// QuestionBank draws personalized questions from pools stored in the question_banks table.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

func (b *QuestionBank) DrawQuestions(ctx context.Context, surveySlug, email string) ([]domain.Question, error) {
	p, err := b.LoadPool(ctx, surveySlug)
	if err != nil {
		return nil, err
	}
	return bank.Draw(p, email), nil
}

// LoadPool reads the whole pool of a survey.
func (b *QuestionBank) LoadPool(ctx context.Context, surveySlug string) (bank.Pool, error) {
	var (
		drawCount int
		raw       []byte
	)
	err := b.pool.QueryRow(ctx, `SELECT draw_count, questions FROM question_banks WHERE slug=$1`, surveySlug).
		Scan(&drawCount, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return bank.Pool{}, fmt.Errorf("question pool %s: %w", surveySlug, domain.ErrSurveyNotFound)
	}
	if err != nil {
		return bank.Pool{}, fmt.Errorf("load question pool: %w", err)
	}
	p := bank.Pool{Slug: surveySlug, DrawCount: drawCount}
	if err := json.Unmarshal(raw, &p.Questions); err != nil {
		return bank.Pool{}, fmt.Errorf("unmarshal question pool: %w", err)
	}
	return p, nil
}

// SavePool upserts a survey's question pool.
func (b *QuestionBank) SavePool(ctx context.Context, p bank.Pool) error {
	data, err := json.Marshal(p.Questions)
	if err != nil {
		return fmt.Errorf("marshal question pool: %w", err)
	}
	_, err = b.pool.Exec(ctx, `
		INSERT INTO question_banks (slug, draw_count, questions) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (slug) DO UPDATE SET draw_count = EXCLUDED.draw_count, questions = EXCLUDED.questions`,
		p.Slug, p.DrawCount, string(data))
	if err != nil {
		return fmt.Errorf("save question pool %s: %w", p.Slug, err)
	}
	return nil
}
