package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// UnmarshalJSON accepts either "label" or {"text": "label", "image": "url"}.
func (o *Option) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}
		*o = Option{Text: label}
		return nil
	}
	type plain Option
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode option: %w", err)
	}
	*o = Option(p)
	return nil
}

// MarshalJSON writes image-less options back as plain labels.
func (o Option) MarshalJSON() ([]byte, error) {
	if o.Image == "" {
		return json.Marshal(o.Text)
	}
	type plain Option
	return json.Marshal(plain(o))
}

// UnmarshalJSON decodes a number, an array of numbers or a string.
// Array members given as numeric strings are accepted as well.
func (c *CorrectAnswer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = CorrectAnswer{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = TextAnswer(s)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		indices := make([]int, 0, len(raw))
		for _, item := range raw {
			idx, err := decodeIndex(item)
			if err != nil {
				return fmt.Errorf("decode correct answer: %w", err)
			}
			indices = append(indices, idx)
		}
		*c = IndicesAnswer(indices...)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("decode correct answer: %w", err)
		}
		*c = IndexAnswer(int(n))
	}
	return nil
}

func decodeIndex(item json.RawMessage) (int, error) {
	var n float64
	if err := json.Unmarshal(item, &n); err == nil {
		return int(n), nil
	}
	var s string
	if err := json.Unmarshal(item, &s); err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

// MarshalJSON mirrors UnmarshalJSON.
func (c CorrectAnswer) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CorrectIndex:
		return json.Marshal(c.Index)
	case CorrectIndices:
		if c.Indices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.Indices)
	case CorrectText:
		return json.Marshal(c.Text)
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes a string or an array of strings.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var choices []string
		if err := json.Unmarshal(data, &choices); err != nil {
			return fmt.Errorf("decode answer: %w", err)
		}
		*v = ChoicesValue(choices...)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*v = TextValue("")
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	*v = TextValue(s)
	return nil
}

// MarshalJSON writes a string for scalar answers and an array for multi-choice ones.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.Multi {
		if v.Choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Choices)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON also accepts the API's "timeLimit" field name for the limit in minutes.
func (s *Survey) UnmarshalJSON(data []byte) error {
	type plain Survey
	var aux struct {
		plain
		TimeLimit *int `json:"timeLimit"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = Survey(aux.plain)
	if s.TimeLimitMinutes == 0 && aux.TimeLimit != nil {
		s.TimeLimitMinutes = *aux.TimeLimit
	}
	return nil
}
