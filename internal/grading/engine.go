package grading

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrUnknownQuestion is returned when an answer refers to a question the key does not contain.
var ErrUnknownQuestion = errors.New("unknown question")

// Key maps question id to its correct letter.
type Key map[string]string

// Result is the outcome for a single question.
type Result struct {
	QuestionID string
	Submitted  string
	Correct    string
	IsCorrect  bool
}

// Sheet is a scored submission. Max is the number of submitted answers,
// not the size of the bank.
type Sheet struct {
	Score   int
	Max     int
	Results []Result
}

func (s Sheet) Percentage() int { return Percentage(s.Score, s.Max) }

// Grade scores answers (question id -> letter) against key. Every answered
// id must be present in key. Results are ordered by question id.
func Grade(key Key, answers map[string]string) (Sheet, error) {
	ids := make([]string, 0, len(answers))
	for id := range answers {
		if _, ok := key[id]; !ok {
			return Sheet{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, id)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	sheet := Sheet{Max: len(ids), Results: make([]Result, 0, len(ids))}
	for _, id := range ids {
		r := gradeSingle(id, key[id], answers[id])
		if r.IsCorrect {
			sheet.Score++
		}
		sheet.Results = append(sheet.Results, r)
	}
	return sheet, nil
}

// gradeSingle is exact single-choice comparison; no partial credit.
func gradeSingle(id, correct, submitted string) Result {
	return Result{
		QuestionID: id,
		Submitted:  submitted,
		Correct:    correct,
		IsCorrect:  submitted != "" && submitted == correct,
	}
}

// Percentage is round(100*score/max), 0 when max is 0.
func Percentage(score, max int) int {
	if max <= 0 {
		return 0
	}
	return int(math.Round(float64(score) * 100 / float64(max)))
}

// MeetsHalf reports score >= max/2 using integer arithmetic.
func MeetsHalf(score, max int) bool {
	return max > 0 && score*2 >= max
}
