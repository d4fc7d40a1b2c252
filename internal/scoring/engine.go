// Package scoring grades a finished assessment.
package scoring

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"assessment-engine/internal/domain"
)

// Grade scores every question in order against the candidate's answers.
// It has no side effects; grading the same inputs twice yields identical reports.
func Grade(questions []domain.Question, answers map[string]domain.AnswerValue, settings domain.ScoringSettings) domain.Report {
	results := make([]domain.AssessmentResult, 0, len(questions))
	var sr domain.ScoringResult

	for _, q := range questions {
		answer, answered := answers[q.ID]
		correct, correctText := judge(q, answer, answered)

		maxPoints := MaxPoints(q, settings)
		awarded := 0
		if correct {
			awarded = maxPoints
			sr.CorrectCount++
		} else {
			sr.WrongCount++
		}
		sr.TotalPoints += awarded
		sr.MaxPossiblePoints += maxPoints

		results = append(results, domain.AssessmentResult{
			QuestionID:        q.ID,
			QuestionText:      q.Text,
			UserAnswer:        displayAnswer(answer, answered),
			CorrectAnswerText: correctText,
			IsCorrect:         correct,
			PointsAwarded:     awarded,
			MaxPoints:         maxPoints,
		})
	}

	verdict(&sr, settings)
	return domain.Report{Scoring: sr, Results: results}
}

// MaxPoints is the weight of q: its own points, else the survey default, else 1.
func MaxPoints(q domain.Question, settings domain.ScoringSettings) int {
	if q.Points > 0 {
		return q.Points
	}
	if settings.DefaultQuestionPoints > 0 {
		return settings.DefaultQuestionPoints
	}
	return 1
}

func verdict(sr *domain.ScoringResult, settings domain.ScoringSettings) {
	mode := settings.ScoringMode
	if mode != domain.ScoringAccumulated {
		mode = domain.ScoringPercentage
	}
	sr.ScoringMode = mode

	switch mode {
	case domain.ScoringAccumulated:
		sr.DisplayScore = float64(sr.TotalPoints)
		sr.Passed = float64(sr.TotalPoints) >= settings.PassingThreshold
		sr.ScoringDescription = fmt.Sprintf("%d of %d points (pass mark %s points)",
			sr.TotalPoints, sr.MaxPossiblePoints, formatNumber(settings.PassingThreshold))
	default:
		pct := 0.0
		if sr.MaxPossiblePoints > 0 {
			pct = float64(sr.TotalPoints) / float64(sr.MaxPossiblePoints) * 100
		}
		sr.DisplayScore = round2(pct)
		sr.Passed = pct >= settings.PassingThreshold
		sr.ScoringDescription = fmt.Sprintf("%s%% (%d of %d points, pass mark %s%%)",
			formatNumber(sr.DisplayScore), sr.TotalPoints, sr.MaxPossiblePoints, formatNumber(settings.PassingThreshold))
	}
}

// judge decides correctness and renders the key for display.
func judge(q domain.Question, answer domain.AnswerValue, answered bool) (bool, string) {
	key := q.CorrectAnswer
	switch q.Type {
	case domain.SingleChoice:
		text := keyText(q, key)
		if !answered {
			return false, text
		}
		if key.Kind != domain.CorrectIndex {
			return strictEqual(answer, key), text
		}
		if answer.Multi {
			return false, text
		}
		return optionIndex(q.Options, answer.Text) == key.Index, text

	case domain.MultipleChoice:
		text := keyText(q, key)
		if !answered {
			return false, text
		}
		if key.Kind != domain.CorrectIndices {
			return strictEqual(answer, key), text
		}
		if !answer.Multi {
			return false, text
		}
		chosen := make(map[int]struct{}, len(answer.Choices))
		for _, label := range answer.Choices {
			chosen[optionIndex(q.Options, label)] = struct{}{}
		}
		want := make(map[int]struct{}, len(key.Indices))
		for _, idx := range key.Indices {
			want[idx] = struct{}{}
		}
		// repeated or unknown labels must not collapse into a matching set
		if len(chosen) != len(answer.Choices) || len(answer.Choices) != len(key.Indices) {
			return false, text
		}
		return sameSet(chosen, want), text

	case domain.ShortText:
		text := keyString(key)
		if !answered || answer.Multi || key.Kind == domain.CorrectNone {
			return false, text
		}
		return answer.Text == text, text
	}

	text := keyString(key)
	if !answered {
		return false, text
	}
	return strictEqual(answer, key), text
}

// strictEqual compares a scalar answer with a string key only; any other pairing differs.
func strictEqual(answer domain.AnswerValue, key domain.CorrectAnswer) bool {
	return key.Kind == domain.CorrectText && !answer.Multi && answer.Text == key.Text
}

// optionIndex finds the option whose label equals label, or -1.
func optionIndex(options []domain.Option, label string) int {
	for i, opt := range options {
		if opt.Text == label {
			return i
		}
	}
	return -1
}

func sameSet(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// keyText renders a choice key as option labels when the indices are in range.
func keyText(q domain.Question, key domain.CorrectAnswer) string {
	switch key.Kind {
	case domain.CorrectIndex:
		return optionLabel(q.Options, key.Index)
	case domain.CorrectIndices:
		labels := make([]string, 0, len(key.Indices))
		for _, idx := range key.Indices {
			labels = append(labels, optionLabel(q.Options, idx))
		}
		return strings.Join(labels, ", ")
	}
	return keyString(key)
}

func optionLabel(options []domain.Option, idx int) string {
	if idx >= 0 && idx < len(options) {
		return options[idx].Text
	}
	return strconv.Itoa(idx)
}

func keyString(key domain.CorrectAnswer) string {
	switch key.Kind {
	case domain.CorrectIndex:
		return strconv.Itoa(key.Index)
	case domain.CorrectIndices:
		parts := make([]string, 0, len(key.Indices))
		for _, idx := range key.Indices {
			parts = append(parts, strconv.Itoa(idx))
		}
		return strings.Join(parts, ", ")
	case domain.CorrectText:
		return key.Text
	}
	return ""
}

func displayAnswer(answer domain.AnswerValue, answered bool) string {
	if !answered {
		return ""
	}
	if answer.Multi {
		return strings.Join(answer.Choices, ", ")
	}
	return answer.Text
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
