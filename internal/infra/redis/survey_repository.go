package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"assessment-engine/internal/domain"
)

// SurveyLoader fetches survey definitions from a backing store (API, Postgres, fixtures).
type SurveyLoader interface {
	LoadSurvey(ctx context.Context, slug string) (domain.Survey, error)
}

// SurveyRepository caches survey definitions in Redis as JSON and falls back to a loader on miss.
// Surveys are stored as: SET assessment:survey:{slug} {json} EX ttl
type SurveyRepository struct {
	client *redis.Client
	loader SurveyLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSurveyRepository(client *redis.Client, loader SurveyLoader, ttl time.Duration) *SurveyRepository {
	return &SurveyRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *SurveyRepository) GetSurvey(ctx context.Context, slug string) (domain.Survey, error) {
	if survey, ok := r.cached(ctx, slug); ok {
		return survey, nil
	}

	result, err, _ := r.sf.Do(slug, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if survey, ok := r.cached(ctx, slug); ok {
			return survey, nil
		}

		survey, err := r.loader.LoadSurvey(ctx, slug)
		if err != nil {
			return domain.Survey{}, err
		}

		data, err := json.Marshal(survey)
		if err != nil {
			return domain.Survey{}, fmt.Errorf("encode survey %s: %w", slug, err)
		}
		// best-effort; a failed write only costs another load
		_ = r.client.Set(ctx, r.key(slug), data, r.ttlWithJitter()).Err()
		return survey, nil
	})
	if err != nil {
		return domain.Survey{}, err
	}
	return result.(domain.Survey), nil
}

// Invalidate drops a cached survey so the next lookup reloads it.
func (r *SurveyRepository) Invalidate(ctx context.Context, slug string) error {
	return r.client.Del(ctx, r.key(slug)).Err()
}

func (r *SurveyRepository) cached(ctx context.Context, slug string) (domain.Survey, bool) {
	data, err := r.client.Get(ctx, r.key(slug)).Bytes()
	if err != nil {
		// redis.Nil on a miss; other errors fall through to the loader as well
		return domain.Survey{}, false
	}
	var survey domain.Survey
	if err := json.Unmarshal(data, &survey); err != nil {
		return domain.Survey{}, false
	}
	return survey, true
}

func (r *SurveyRepository) key(slug string) string {
	return "assessment:survey:" + slug
}

func (r *SurveyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
