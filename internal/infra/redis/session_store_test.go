package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
	"assessment-engine/internal/infra/memory"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	store := NewSessionStore(client, time.Minute)

	store.Put(app.NewSession("s1", "go-basics", nil))
	if !mr.Exists("assessment:session:s1") {
		t.Fatalf("expected redis key to be set")
	}
	if got, _ := mr.Get("assessment:session:s1"); got != "go-basics" {
		t.Fatalf("expected slug as value, got %q", got)
	}
	if _, ok := store.Get("s1"); !ok {
		t.Fatalf("expected local session")
	}

	mr.FastForward(30 * time.Second)
	if err := store.Touch(context.Background(), "s1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if ttl := mr.TTL("assessment:session:s1"); ttl != time.Minute {
		t.Fatalf("expected ttl refreshed, got %v", ttl)
	}

	store.Delete("s1")
	if mr.Exists("assessment:session:s1") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestServiceActionsRefreshLiveness(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute)
	surveys := memory.NewSurveyRepository(memory.NewStaticSurveyLoader(map[string]domain.Survey{
		"go-basics": {
			ID:         "survey-1",
			Slug:       "go-basics",
			Type:       domain.SurveyQuiz,
			SourceType: domain.SourceManual,
			Questions: []domain.Question{
				{ID: "q1", Type: domain.ShortText, CorrectAnswer: domain.TextAnswer("Go")},
				{ID: "q2", Type: domain.ShortText, CorrectAnswer: domain.TextAnswer("Rust")},
			},
		},
	}), time.Minute)
	service := app.NewAssessmentService(store, surveys, nil, memory.NewResponseLog())

	view, err := service.Open(ctx, "go-basics")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer service.Close(ctx, view.SessionID)
	key := "assessment:session:" + view.SessionID

	mr.FastForward(45 * time.Second)
	if _, err := service.Start(ctx, view.SessionID, domain.Candidate{Name: "Ada", Email: "ada@example.com"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Fatalf("expected start to refresh ttl, got %v", ttl)
	}

	mr.FastForward(45 * time.Second)
	if _, err := service.Next(ctx, view.SessionID); err != nil {
		t.Fatalf("next: %v", err)
	}
	if !mr.Exists(key) || mr.TTL(key) != time.Minute {
		t.Fatalf("expected session to stay alive past its original ttl, got %v", mr.TTL(key))
	}
}
