package http

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
	"assessment-engine/internal/infra/memory"
)

func TestWebSocketAssessmentFlow(t *testing.T) {
	server, responses := newTestServer(t)
	conn := dial(t, server, "go-basics")

	msgType, payload := readNext(conn, t, "session")
	if payload["phase"] != string(domain.PhaseInstructions) {
		t.Fatalf("expected instructions phase, got %v (%s)", payload["phase"], msgType)
	}

	send(t, conn, map[string]any{"type": "start", "payload": map[string]any{"name": "Ada", "email": "ada@example.com"}})
	_, payload = readUntil(conn, t, "session", func(p map[string]any) bool { return p["phase"] == string(domain.PhaseQuestions) })
	current, _ := payload["current"].(map[string]any)
	if current["id"] != "q1" {
		t.Fatalf("expected first question, got %v", payload["current"])
	}
	if _, leaked := current["correctAnswer"]; leaked {
		t.Fatalf("correct answer must not be sent to the client")
	}

	send(t, conn, map[string]any{"type": "answer", "payload": map[string]any{"questionId": "q1", "value": "4"}})
	send(t, conn, map[string]any{"type": "submit"})

	_, payload = readUntil(conn, t, "results", nil)
	report, _ := payload["report"].(map[string]any)
	scoring, _ := report["scoring"].(map[string]any)
	if scoring["displayScore"] != float64(100) {
		t.Fatalf("expected full score, got %v", scoring)
	}
	if n := len(responses.Responses()); n != 1 {
		t.Fatalf("expected one submission, got %d", n)
	}

	send(t, conn, map[string]any{"type": "next"})
	_, payload = readUntil(conn, t, "error", nil)
	if payload["code"] != "invalid_phase" {
		t.Fatalf("expected invalid_phase, got %v", payload)
	}
}

func TestWebSocketRejectsUnknownSurvey(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server, "missing")

	_, payload := readNext(conn, t, "error")
	if payload["code"] != "survey_not_found" {
		t.Fatalf("expected survey_not_found, got %v", payload)
	}
}

func TestWebSocketUnsupportedMessage(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server, "go-basics")
	readNext(conn, t, "session")

	send(t, conn, map[string]any{"type": "dance"})
	_, payload := readUntil(conn, t, "error", nil)
	if payload["message"] != "unsupported message type" {
		t.Fatalf("unexpected error payload %v", payload)
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *memory.ResponseLog) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	responses := memory.NewResponseLog()
	surveys := memory.NewSurveyRepository(memory.NewStaticSurveyLoader(sampleSurveys()), time.Minute)
	service := app.NewAssessmentService(memory.NewSessionStore(), surveys, memory.NewQuestionBank(), responses, app.WithLogger(logger))

	server := httptest.NewServer(NewRouter(service, logger))
	t.Cleanup(server.Close)
	return server, responses
}

func dial(t *testing.T, server *httptest.Server, slug string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?survey=" + slug
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %v: %v", msg["type"], err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

// readUntil skips messages until one of type expect satisfies match.
func readUntil(conn *websocket.Conn, t *testing.T, expect string, match func(map[string]any) bool) (string, map[string]any) {
	t.Helper()
	for i := 0; i < 20; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == expect && (match == nil || match(payload)) {
			return typ, payload
		}
	}
	t.Fatalf("no %s message received", expect)
	return "", nil
}

func sampleSurveys() map[string]domain.Survey {
	return map[string]domain.Survey{
		"go-basics": {
			ID:         "survey-1",
			Slug:       "go-basics",
			Title:      "Go basics",
			Type:       domain.SurveyAssessment,
			SourceType: domain.SourceManual,
			Questions: []domain.Question{
				{
					ID:            "q1",
					Text:          "What is 2 + 2?",
					Type:          domain.SingleChoice,
					Options:       []domain.Option{{Text: "3"}, {Text: "4"}, {Text: "5"}},
					CorrectAnswer: domain.IndexAnswer(1),
					Points:        1,
				},
			},
			ScoringSettings: domain.ScoringSettings{
				ScoringMode:      domain.ScoringPercentage,
				PassingThreshold: 50,
				ShowScore:        true,
				ShowBreakdown:    true,
			},
		},
	}
}
