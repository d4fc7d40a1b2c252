package session

import "assessment-engine/internal/domain"

// AnswerStore maps question ids to the candidate's current answer.
// It is owned by a single Controller and relies on its lock.
type AnswerStore struct {
	values map[string]domain.AnswerValue
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{values: make(map[string]domain.AnswerValue)}
}

// Set records a candidate's answer, replacing any previous one.
func (s *AnswerStore) Set(questionID string, value domain.AnswerValue) {
	if value.Multi {
		value.Choices = append([]string(nil), value.Choices...)
	}
	s.values[questionID] = value
}

// MarkSkippedIfUnset stores the empty-string skip marker unless an answer already exists.
// It reports whether the marker was written.
func (s *AnswerStore) MarkSkippedIfUnset(questionID string) bool {
	if _, ok := s.values[questionID]; ok {
		return false
	}
	s.values[questionID] = domain.TextValue("")
	return true
}

// Get returns the stored answer; ok is false for questions never touched.
func (s *AnswerStore) Get(questionID string) (domain.AnswerValue, bool) {
	v, ok := s.values[questionID]
	return v, ok
}

// Snapshot copies the store so later writes cannot leak into a computed report.
func (s *AnswerStore) Snapshot() map[string]domain.AnswerValue {
	out := make(map[string]domain.AnswerValue, len(s.values))
	for id, v := range s.values {
		if v.Multi {
			v.Choices = append([]string(nil), v.Choices...)
		}
		out[id] = v
	}
	return out
}

// Ordered lays answers out in question order for the responses payload.
// Unanswered questions become an empty string, multi-choice questions an empty list.
func (s *AnswerStore) Ordered(questions []domain.Question) []domain.AnswerValue {
	out := make([]domain.AnswerValue, 0, len(questions))
	for _, q := range questions {
		v, ok := s.values[q.ID]
		switch {
		case ok:
			out = append(out, v)
		case q.Type == domain.MultipleChoice:
			out = append(out, domain.ChoicesValue())
		default:
			out = append(out, domain.TextValue(""))
		}
	}
	return out
}
