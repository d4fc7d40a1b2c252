package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
)

type WSHandler struct {
	service  *app.AssessmentService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AssessmentService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type resolvePayload struct {
	Email string `json:"email"`
}

type startPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type answerPayload struct {
	QuestionID string             `json:"questionId"`
	Value      domain.AnswerValue `json:"value"`
}

type tickPayload struct {
	SessionID        string `json:"sessionId"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: domain.Code(err), Message: err.Error()}}
}

func updateMessage(u app.Update) outboundMessage[any] {
	if u.Kind == app.UpdateTick {
		return outboundMessage[any]{Type: string(u.Kind), Payload: tickPayload{
			SessionID:        u.View.SessionID,
			RemainingSeconds: u.View.RemainingSeconds,
		}}
	}
	return outboundMessage[any]{Type: string(u.Kind), Payload: u.View}
}

// ServeWS upgrades HTTP requests to websockets and runs one assessment session per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("survey")
	if slug == "" {
		http.Error(w, "missing survey", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Sessions outlive individual request-scoped calls; they end with the connection.
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	opened, err := h.service.Open(ctx, slug)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	sessionID := opened.SessionID
	defer h.service.Close(ctx, sessionID)

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer: gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "session_id", sessionID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- updateMessage(update):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(ctx, sessionID, inbound); err != nil {
			select {
			case send <- errorMessage(err):
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

var errBadPayload = errors.New("invalid payload")

// dispatch runs one inbound command. Successful commands answer through the session's
// update stream, so only errors are returned to the caller.
func (h *WSHandler) dispatch(ctx context.Context, sessionID string, inbound inboundMessage) error {
	var err error
	switch inbound.Type {
	case "resolve":
		var p resolvePayload
		if json.Unmarshal(inbound.Payload, &p) != nil {
			return errBadPayload
		}
		_, err = h.service.ResolveQuestions(ctx, sessionID, p.Email)
	case "start":
		var p startPayload
		if json.Unmarshal(inbound.Payload, &p) != nil {
			return errBadPayload
		}
		_, err = h.service.Start(ctx, sessionID, domain.Candidate{Name: p.Name, Email: p.Email})
	case "answer":
		var p answerPayload
		if json.Unmarshal(inbound.Payload, &p) != nil {
			return errBadPayload
		}
		_, err = h.service.Answer(ctx, sessionID, p.QuestionID, p.Value)
	case "next":
		_, err = h.service.Next(ctx, sessionID)
	case "previous":
		_, err = h.service.Previous(ctx, sessionID)
	case "skip":
		_, err = h.service.Skip(ctx, sessionID)
	case "submit":
		_, err = h.service.Submit(ctx, sessionID)
	case "retry":
		_, err = h.service.RetrySubmission(ctx, sessionID)
	default:
		return errors.New("unsupported message type")
	}
	if err != nil {
		h.logger.Debug("command rejected", "session_id", sessionID, "type", inbound.Type, "error", err)
	}
	return err
}
