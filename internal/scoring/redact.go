package scoring

import "assessment-engine/internal/domain"

// Redact returns the part of a report the candidate is allowed to see under settings.
// The input report is left untouched.
func Redact(report domain.Report, settings domain.ScoringSettings) domain.Report {
	out := domain.Report{Scoring: report.Scoring}
	if !settings.ShowScore {
		out.Scoring.TotalPoints = 0
		out.Scoring.MaxPossiblePoints = 0
		out.Scoring.DisplayScore = 0
		out.Scoring.ScoringDescription = ""
	}
	if !settings.ShowBreakdown {
		out.Scoring.CorrectCount = 0
		out.Scoring.WrongCount = 0
		return out
	}
	out.Results = make([]domain.AssessmentResult, len(report.Results))
	copy(out.Results, report.Results)
	if !settings.ShowCorrectAnswers {
		for i := range out.Results {
			out.Results[i].CorrectAnswerText = ""
		}
	}
	return out
}
