package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assessment-engine/internal/domain"
)

func newController(t *testing.T, survey domain.Survey, bank QuestionBank, sub Submitter, clock *fakeClock) *Controller {
	t.Helper()
	c := NewController(Config{
		Survey:     survey,
		Bank:       bank,
		Submitter:  sub,
		Clock:      clock.Now,
		TickSource: silentTicks,
	})
	t.Cleanup(c.Close)
	return c
}

func TestStartRequiresCandidate(t *testing.T) {
	c := newController(t, manualSurvey(0), nil, &countingSubmitter{}, newFakeClock())

	assert.ErrorIs(t, c.Start(context.Background(), "", "ada@example.com"), domain.ErrCandidateRequired)
	assert.ErrorIs(t, c.Start(context.Background(), "Ada", "   "), domain.ErrCandidateRequired)
	assert.Equal(t, domain.PhaseInstructions, c.Phase())

	require.NoError(t, c.Start(context.Background(), "Ada", "ada@example.com"))
	assert.Equal(t, domain.PhaseQuestions, c.Phase())
	assert.ErrorIs(t, c.Start(context.Background(), "Ada", "ada@example.com"), domain.ErrInvalidPhase)
}

func TestNavigationBeforeStartIsRejected(t *testing.T) {
	c := newController(t, manualSurvey(0), nil, &countingSubmitter{}, newFakeClock())

	assert.ErrorIs(t, c.Next(), domain.ErrInvalidPhase)
	assert.ErrorIs(t, c.Skip(), domain.ErrInvalidPhase)
	assert.ErrorIs(t, c.SetAnswer("q1", domain.TextValue("B")), domain.ErrInvalidPhase)
	assert.ErrorIs(t, c.Submit(context.Background()), domain.ErrInvalidPhase)
}

func TestBankStartWaitsForDraw(t *testing.T) {
	bank := &countingBank{questions: sampleQuestions()}
	c := newController(t, bankSurvey(), bank, &countingSubmitter{}, newFakeClock())

	_, err := c.ResolveQuestions(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background(), "Ada", "ada@example.com"))

	assert.Equal(t, int32(1), bank.calls.Load(), "start reuses the draw made while typing the email")
	view := c.Snapshot()
	assert.Equal(t, 3, view.TotalQuestions)
	require.NotNil(t, view.Current)
	assert.Equal(t, "q1", view.Current.ID)
}

func TestStartWithChangedEmailDrawsAgain(t *testing.T) {
	all := sampleQuestions()
	bank := &countingBank{byEmail: map[string][]domain.Question{
		"alice@example.com": all[:1],
		"bob@example.com":   all[1:],
	}}
	sub := &countingSubmitter{}
	c := newController(t, bankSurvey(), bank, sub, newFakeClock())

	_, err := c.ResolveQuestions(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background(), "Bob", "bob@example.com"))

	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, bank.drawnFor())
	view := c.Snapshot()
	assert.Equal(t, 2, view.TotalQuestions)
	require.NotNil(t, view.Current)
	assert.Equal(t, "q2", view.Current.ID)

	_, err = c.ResolveQuestions(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, domain.ErrInvalidPhase, "the draw is pinned once the assessment started")

	require.NoError(t, c.Submit(context.Background()))
	last := sub.lastSubmission()
	assert.Equal(t, "bob@example.com", last.Email)
	assert.Len(t, last.Answers, 2)
}

func TestResolveIsCaseInsensitiveOnEmail(t *testing.T) {
	bank := &countingBank{questions: sampleQuestions()}
	c := newController(t, bankSurvey(), bank, &countingSubmitter{}, newFakeClock())

	_, err := c.ResolveQuestions(context.Background(), "Ada@Example.com")
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background(), "Ada", " ada@example.com "))
	assert.Equal(t, int32(1), bank.calls.Load())
}

func TestBankFailureKeepsInstructions(t *testing.T) {
	bank := &countingBank{err: errUpstream}
	c := newController(t, bankSurvey(), bank, &countingSubmitter{}, newFakeClock())

	err := c.Start(context.Background(), "Ada", "ada@example.com")
	assert.ErrorIs(t, err, domain.ErrQuestionsUnavailable)
	assert.Equal(t, domain.PhaseInstructions, c.Phase())

	bank.err = nil
	bank.questions = sampleQuestions()
	require.NoError(t, c.Start(context.Background(), "Ada", "ada@example.com"))
	assert.Equal(t, domain.PhaseQuestions, c.Phase())
}

func TestStaleDrawIsDiscardedAfterClose(t *testing.T) {
	bank := &countingBank{questions: sampleQuestions(), release: make(chan struct{})}
	c := newController(t, bankSurvey(), bank, &countingSubmitter{}, newFakeClock())

	errc := make(chan error, 1)
	go func() { errc <- c.Start(context.Background(), "Ada", "ada@example.com") }()

	require.Eventually(t, func() bool { return bank.calls.Load() == 1 }, time.Second, time.Millisecond)
	c.Close()
	close(bank.release)

	assert.ErrorIs(t, <-errc, domain.ErrSessionClosed)
	assert.Equal(t, domain.PhaseInstructions, c.Phase())
}

func TestNavigationTracksTimeAcrossRevisits(t *testing.T) {
	clock := newFakeClock()
	c := newController(t, manualSurvey(0), nil, &countingSubmitter{}, clock)
	require.NoError(t, c.Start(context.Background(), "Ada", "ada@example.com"))

	clock.Advance(4 * time.Second)
	require.NoError(t, c.Next()) // q1 -> q2
	clock.Advance(2 * time.Second)
	require.NoError(t, c.Previous()) // q2 -> q1
	clock.Advance(6 * time.Second)
	require.NoError(t, c.Next()) // q1 -> q2
	clock.Advance(3 * time.Second)
	require.NoError(t, c.Submit(context.Background()))

	byID := map[string]domain.QuestionTiming{}
	for _, tm := range c.Timings() {
		byID[tm.QuestionID] = tm
	}
	assert.Equal(t, 10, byID["q1"].DurationSeconds)
	assert.Equal(t, 2, byID["q1"].Visits)
	assert.Equal(t, 5, byID["q2"].DurationSeconds)
	_, visitedQ3 := byID["q3"]
	assert.False(t, visitedQ3)
}

func TestNavigationIsNoOpAtEdges(t *testing.T) {
	c := newController(t, manualSurvey(0), nil, &countingSubmitter{}, newFakeClock())
	require.NoError(t, c.Start(context.Background(), "Ada", "ada@example.com"))

	require.NoError(t, c.Previous())
	assert.Equal(t, 0, c.Snapshot().CurrentIndex)

	require.NoError(t, c.Next())
	require.NoError(t, c.Next())
	require.NoError(t, c.Next())
	assert.Equal(t, 2, c.Snapshot().CurrentIndex)
}

func TestSkipDoesNotClobberAnswer(t *testing.T) {
	c := newController(t, manualSurvey(0), nil, &countingSubmitter{}, newFakeClock())
	require.NoError(t, c.Start(context.Background(), "Ada", "ada@example.com"))

	require.NoError(t, c.Skip()) // q1 skipped, now on q2
	v, ok := c.Answer("q1")
	require.True(t, ok)
	assert.True(t, v.IsSkip())

	require.NoError(t, c.SetAnswer("q2", domain.TextValue("A")))
	require.NoError(t, c.Previous())
	require.NoError(t, c.Next())
	require.NoError(t, c.Skip())

	v, _ = c.Answer("q2")
	assert.Equal(t, "A", v.Text)
}

func TestPreviousNeverMutatesAnswers(t *testing.T) {
	c := newController(t, manualSurvey(0), nil, &countingSubmitter{}, newFakeClock())
	require.NoError(t, c.Start(context.Background(), "Ada", "ada@example.com"))
	require.NoError(t, c.Next())
	require.NoError(t, c.Previous())

	_, ok := c.Answer("q2")
	assert.False(t, ok)
	_, ok = c.Answer("q1")
	assert.False(t, ok)
}

func TestSetAnswerRejectsUnknownQuestion(t *testing.T) {
	c := newController(t, manualSurvey(0), nil, &countingSubmitter{}, newFakeClock())
	require.NoError(t, c.Start(context.Background(), "Ada", "ada@example.com"))
	assert.ErrorIs(t, c.SetAnswer("nope", domain.TextValue("x")), domain.ErrQuestionNotFound)
}

func TestSubmitGradesAndDelivers(t *testing.T) {
	sub := &countingSubmitter{}
	c := newController(t, manualSurvey(0), nil, sub, newFakeClock())
	require.NoError(t, c.Start(context.Background(), " Ada ", "ada@example.com"))

	require.NoError(t, c.SetAnswer("q1", domain.TextValue("B")))
	require.NoError(t, c.Next())
	require.NoError(t, c.SetAnswer("q2", domain.ChoicesValue("C", "A")))
	require.NoError(t, c.Next())
	require.NoError(t, c.Submit(context.Background()))

	assert.Equal(t, domain.PhaseResults, c.Phase())
	report, ok := c.Report()
	require.True(t, ok)
	assert.Equal(t, 2, report.Scoring.CorrectCount)
	assert.Equal(t, 1, report.Scoring.WrongCount)
	assert.Equal(t, 66.67, report.Scoring.DisplayScore)
	assert.True(t, report.Scoring.Passed)

	got := sub.lastSubmission()
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "survey-1", got.SurveyID)
	require.Len(t, got.Answers, 3)
	assert.Equal(t, "B", got.Answers[0].Text)
	assert.Equal(t, []string{"C", "A"}, got.Answers[1].Choices)
	assert.Equal(t, "", got.Answers[2].Text)

	// Results is terminal.
	assert.ErrorIs(t, c.Next(), domain.ErrInvalidPhase)
	require.NoError(t, c.Submit(context.Background()))
	assert.Equal(t, int32(1), sub.calls.Load())
	assert.Equal(t, domain.TriggerManual, c.SubmittedBy())
}

func TestTimerExpiryAutoSubmits(t *testing.T) {
	sub := &countingSubmitter{}
	var mu sync.Mutex
	var remaining []int
	c := NewController(Config{
		Survey:     manualSurvey(1),
		Submitter:  sub,
		Clock:      newFakeClock().Now,
		TickSource: silentTicks,
		Hooks: Hooks{OnTick: func(r int) {
			mu.Lock()
			remaining = append(remaining, r)
			mu.Unlock()
		}},
	})
	defer c.Close()
	require.NoError(t, c.Start(context.Background(), "Ada", "ada@example.com"))
	assert.Equal(t, 60, c.Snapshot().RemainingSeconds)

	for i := 0; i < 60; i++ {
		c.timer.Tick()
	}
	c.timer.Tick()

	assert.Equal(t, domain.PhaseResults, c.Phase())
	assert.Equal(t, int32(1), sub.calls.Load())
	assert.Equal(t, domain.TriggerTimer, c.SubmittedBy())
	mu.Lock()
	assert.Len(t, remaining, 60)
	assert.Equal(t, 0, remaining[len(remaining)-1])
	mu.Unlock()
}

func TestManualSubmitAndExpiryRaceSubmitOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		sub := &countingSubmitter{}
		c := newController(t, manualSurvey(1), nil, sub, newFakeClock())
		require.NoError(t, c.Start(context.Background(), "Ada", "ada@example.com"))
		for j := 0; j < 59; j++ {
			c.timer.Tick()
		}

		var wg sync.WaitGroup
		wg.Add(3)
		go func() { defer wg.Done(); c.timer.Tick() }()
		go func() { defer wg.Done(); _ = c.Submit(context.Background()) }()
		go func() { defer wg.Done(); _ = c.Submit(context.Background()) }()
		wg.Wait()

		assert.Equal(t, int32(1), sub.calls.Load(), "iteration %d", i)
		assert.Equal(t, domain.PhaseResults, c.Phase())
		assert.False(t, c.timer.Running())
	}
}

func TestSubmitCancelsTimer(t *testing.T) {
	c := newController(t, manualSurvey(5), nil, &countingSubmitter{}, newFakeClock())
	require.NoError(t, c.Start(context.Background(), "Ada", "ada@example.com"))
	require.True(t, c.timer.Running())

	require.NoError(t, c.Submit(context.Background()))
	assert.False(t, c.timer.Running())
	assert.False(t, c.timer.Expired())
}

func TestCloseCancelsTimer(t *testing.T) {
	sub := &countingSubmitter{}
	c := newController(t, manualSurvey(1), nil, sub, newFakeClock())
	require.NoError(t, c.Start(context.Background(), "Ada", "ada@example.com"))

	c.Close()
	for i := 0; i < 61; i++ {
		c.timer.Tick()
	}
	assert.Zero(t, sub.calls.Load())
	assert.ErrorIs(t, c.Submit(context.Background()), domain.ErrSessionClosed)
}

func TestSubmissionFailureRequiresExplicitRetry(t *testing.T) {
	sub := &countingSubmitter{err: errUpstream}
	var failures int
	c := NewController(Config{
		Survey:     manualSurvey(1),
		Submitter:  sub,
		Clock:      newFakeClock().Now,
		TickSource: silentTicks,
		Hooks:      Hooks{OnSubmitFailed: func(error, domain.Trigger) { failures++ }},
	})
	defer c.Close()
	require.NoError(t, c.Start(context.Background(), "Ada", "ada@example.com"))
	require.NoError(t, c.SetAnswer("q1", domain.TextValue("B")))

	err := c.Submit(context.Background())
	assert.ErrorIs(t, err, domain.ErrSubmissionFailed)
	assert.Equal(t, 1, failures)
	assert.Equal(t, domain.PhaseQuestions, c.Phase())
	assert.NotEmpty(t, c.Snapshot().SubmitError)

	// Neither the other trigger nor a second click resubmits on its own.
	for i := 0; i < 61; i++ {
		c.timer.Tick()
	}
	require.NoError(t, c.Submit(context.Background()))
	assert.Equal(t, int32(1), sub.calls.Load())
	assert.ErrorIs(t, c.SetAnswer("q1", domain.TextValue("A")), domain.ErrInvalidPhase)

	sub.setErr(nil)
	require.NoError(t, c.RetrySubmission(context.Background()))
	assert.Equal(t, int32(2), sub.calls.Load())
	assert.Equal(t, domain.PhaseResults, c.Phase())
	assert.Equal(t, "B", sub.lastSubmission().Answers[0].Text)

	assert.ErrorIs(t, c.RetrySubmission(context.Background()), domain.ErrNothingToRetry)
}

func TestSnapshotHidesKeyAndRedactsReport(t *testing.T) {
	survey := manualSurvey(0)
	survey.ScoringSettings.ShowBreakdown = false
	c := newController(t, survey, nil, &countingSubmitter{}, newFakeClock())
	require.NoError(t, c.Start(context.Background(), "Ada", "ada@example.com"))

	view := c.Snapshot()
	require.NotNil(t, view.Current)
	assert.Equal(t, "Which is B?", view.Current.Text)
	assert.Nil(t, view.CurrentAnswer)
	assert.False(t, view.TimeLimited)

	require.NoError(t, c.Submit(context.Background()))
	view = c.Snapshot()
	require.NotNil(t, view.Report)
	assert.Empty(t, view.Report.Results)
	assert.Nil(t, view.Current)

	full, _ := c.Report()
	assert.Len(t, full.Results, 3)
}
