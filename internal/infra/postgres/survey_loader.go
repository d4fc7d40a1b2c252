package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"assessment-engine/internal/domain"
)

// SurveyLoader loads survey JSONB from Postgres.
type SurveyLoader struct {
	pool *pgxpool.Pool
}

func NewSurveyLoader(pool *pgxpool.Pool) *SurveyLoader {
	return &SurveyLoader{pool: pool}
}

func (l *SurveyLoader) LoadSurvey(ctx context.Context, slug string) (domain.Survey, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM surveys WHERE slug=$1`, slug).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Survey{}, fmt.Errorf("survey %s: %w", slug, domain.ErrSurveyNotFound)
	}
	if err != nil {
		return domain.Survey{}, fmt.Errorf("load survey: %w", err)
	}
	var survey domain.Survey
	if err := json.Unmarshal(raw, &survey); err != nil {
		return domain.Survey{}, fmt.Errorf("unmarshal survey: %w", err)
	}
	if survey.Slug == "" {
		survey.Slug = slug
	}
	return survey, nil
}

// SaveSurvey upserts a survey definition.
func (l *SurveyLoader) SaveSurvey(ctx context.Context, survey domain.Survey) error {
	data, err := json.Marshal(survey)
	if err != nil {
		return fmt.Errorf("marshal survey: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO surveys (slug, data, updated_at) VALUES ($1, $2::jsonb, now())
		ON CONFLICT (slug) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		survey.Slug, string(data))
	if err != nil {
		return fmt.Errorf("save survey %s: %w", survey.Slug, err)
	}
	return nil
}
