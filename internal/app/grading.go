package app

import (
	"strconv"

	"timed-quiz-service/internal/domain"
)

// Grade counts the questions whose id, as a decimal string, maps to exactly
// the stored correct answer. Missing answers score nothing and unknown keys
// are ignored.
func Grade(questions []domain.Question, answers map[string]string) int {
	score := 0
	for _, q := range questions {
		if answer, ok := answers[strconv.FormatInt(q.ID, 10)]; ok && answer == q.CorrectAnswer {
			score++
		}
	}
	return score
}
