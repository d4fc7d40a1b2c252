package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"assessment-engine/internal/domain"
)

// SurveyLoader fetches survey definitions from a backing store (API, Postgres, fixtures).
type SurveyLoader interface {
	LoadSurvey(ctx context.Context, slug string) (domain.Survey, error)
}

// SurveyRepository caches surveys with TTL to avoid repeated loader hits.
type SurveyRepository struct {
	loader SurveyLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedSurvey
}

type cachedSurvey struct {
	survey    domain.Survey
	expiresAt time.Time
}

func NewSurveyRepository(loader SurveyLoader, ttl time.Duration) *SurveyRepository {
	return &SurveyRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSurvey),
	}
}

func (r *SurveyRepository) GetSurvey(ctx context.Context, slug string) (domain.Survey, error) {
	if survey, ok := r.cached(slug); ok {
		return survey, nil
	}

	result, err, _ := r.sf.Do(slug, func() (interface{}, error) {
		if survey, ok := r.cached(slug); ok {
			return survey, nil
		}

		survey, err := r.loader.LoadSurvey(ctx, slug)
		if err != nil {
			return domain.Survey{}, err
		}

		r.mu.Lock()
		r.cache[slug] = cachedSurvey{
			survey:    survey,
			expiresAt: r.clock().Add(r.ttlWithJitterLocked()),
		}
		r.mu.Unlock()
		return survey, nil
	})
	if err != nil {
		return domain.Survey{}, err
	}
	return result.(domain.Survey), nil
}

// Invalidate drops a cached survey so the next lookup reloads it.
func (r *SurveyRepository) Invalidate(slug string) {
	r.mu.Lock()
	delete(r.cache, slug)
	r.mu.Unlock()
}

func (r *SurveyRepository) cached(slug string) (domain.Survey, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[slug]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Survey{}, false
	}
	return entry.survey, true
}

func (r *SurveyRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticSurveyLoader is a loader backed by an in-memory map (useful for tests/demos).
type StaticSurveyLoader struct {
	surveys map[string]domain.Survey
}

func NewStaticSurveyLoader(surveys map[string]domain.Survey) *StaticSurveyLoader {
	return &StaticSurveyLoader{surveys: surveys}
}

func (l *StaticSurveyLoader) LoadSurvey(_ context.Context, slug string) (domain.Survey, error) {
	if survey, ok := l.surveys[slug]; ok {
		return survey, nil
	}
	return domain.Survey{}, fmt.Errorf("survey %s: %w", slug, domain.ErrSurveyNotFound)
}
