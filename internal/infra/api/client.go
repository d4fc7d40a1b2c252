// Package api talks to the survey platform's HTTP API: survey definitions,
// personalized question draws and response submission.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"assessment-engine/internal/domain"
)

// Client wraps the survey platform endpoints. It implements the survey loader,
// the question bank and the submitter.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. A zero timeout means 30 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// LoadSurvey fetches GET /survey/{slug}.
func (c *Client) LoadSurvey(ctx context.Context, slug string) (domain.Survey, error) {
	var survey domain.Survey
	err := c.do(ctx, http.MethodGet, "/survey/"+url.PathEscape(slug), nil, &survey)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return domain.Survey{}, fmt.Errorf("survey %s: %w: %w", slug, domain.ErrSurveyNotFound, err)
		}
		return domain.Survey{}, fmt.Errorf("load survey %s: %w", slug, err)
	}
	if survey.Slug == "" {
		survey.Slug = slug
	}
	return survey, nil
}

// DrawQuestions fetches GET /survey/{slug}/questions?email={email}.
func (c *Client) DrawQuestions(ctx context.Context, surveySlug, email string) ([]domain.Question, error) {
	var body struct {
		Questions []domain.Question `json:"questions"`
	}
	path := "/survey/" + url.PathEscape(surveySlug) + "/questions?" + url.Values{"email": {email}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Questions, nil
}

// Submit posts the submission to POST /surveys/{surveyId}/responses.
func (c *Client) Submit(ctx context.Context, submission domain.Submission) error {
	payload, err := json.Marshal(submission)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	path := "/surveys/" + url.PathEscape(submission.SurveyID) + "/responses"
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func isStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
