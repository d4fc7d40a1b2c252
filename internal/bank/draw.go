// Package bank draws personalized question sets from a survey's question pool.
package bank

import (
	"hash/fnv"
	"math/rand"
	"strings"

	"assessment-engine/internal/domain"
)

// Pool is the set of questions a bank-based survey draws from.
type Pool struct {
	Slug      string            `json:"slug"`
	DrawCount int               `json:"drawCount"`
	Questions []domain.Question `json:"questions"`
}

// Draw picks the candidate's questions from pool. The same slug and email always yield
// the same selection in the same order; a DrawCount of 0 (or larger than the pool) takes all.
func Draw(pool Pool, email string) []domain.Question {
	if len(pool.Questions) == 0 {
		return nil
	}
	questions := append([]domain.Question(nil), pool.Questions...)
	rnd := rand.New(rand.NewSource(Seed(pool.Slug, email)))
	rnd.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	if pool.DrawCount > 0 && pool.DrawCount < len(questions) {
		questions = questions[:pool.DrawCount]
	}
	return questions
}

// Seed derives the shuffle seed for a candidate. Emails are compared case-insensitively.
func Seed(slug, email string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(slug))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(email))))
	return int64(h.Sum64())
}
