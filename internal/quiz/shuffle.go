package quiz

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/mind-engage/masterclass/internal/exam"
)

// Mapping maps a displayed letter to the canonical letter it stands for.
type Mapping map[exam.Letter]exam.Letter

// Canonical inverts one displayed letter.
func (m Mapping) Canonical(display exam.Letter) (exam.Letter, bool) {
	c, ok := m[display]
	return c, ok
}

// Display returns the displayed letter for a canonical one.
func (m Mapping) Display(canonical exam.Letter) (exam.Letter, bool) {
	for d, c := range m {
		if c == canonical {
			return d, true
		}
	}
	return "", false
}

// Valid reports whether m is a bijection over A..D.
func (m Mapping) Valid() bool {
	if len(m) != len(exam.Letters) {
		return false
	}
	seen := make(map[exam.Letter]bool, len(m))
	for d, c := range m {
		if !d.Valid() || !c.Valid() || seen[c] {
			return false
		}
		seen[c] = true
	}
	return true
}

// Shuffled is a question as rendered: choices keyed by displayed letter.
type Shuffled struct {
	ID      string       `json:"id"`
	Text    string       `json:"question_text"`
	Choices exam.Choices `json:"choices"`
	Mapping Mapping      `json:"-"`
}

// Shuffler permutes choices. Safe for concurrent use.
type Shuffler struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewShuffler uses src, or a randomly seeded PCG when src is nil.
func NewShuffler(src rand.Source) *Shuffler {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Shuffler{r: rand.New(src)}
}

type pair struct {
	orig exam.Letter
	text string
}

// Shuffle applies Fisher-Yates to the four (letter, text) pairs and assigns
// A..D to the result in order.
func (s *Shuffler) Shuffle(q exam.PublicQuestion) (Shuffled, error) {
	if err := q.Choices.Validate(); err != nil {
		return Shuffled{}, fmt.Errorf("question %s: %w", q.ID, err)
	}
	pairs := make([]pair, len(exam.Letters))
	for i, l := range exam.Letters {
		pairs[i] = pair{orig: l, text: q.Choices[l]}
	}

	s.mu.Lock()
	s.r.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })
	s.mu.Unlock()

	out := Shuffled{
		ID:      q.ID,
		Text:    q.Text,
		Choices: make(exam.Choices, len(pairs)),
		Mapping: make(Mapping, len(pairs)),
	}
	for i, p := range pairs {
		d := exam.Letters[i]
		out.Choices[d] = p.text
		out.Mapping[d] = p.orig
	}
	return out, nil
}

// ShuffleAll shuffles every question independently.
func (s *Shuffler) ShuffleAll(qs []exam.PublicQuestion) ([]Shuffled, error) {
	out := make([]Shuffled, 0, len(qs))
	for _, q := range qs {
		sq, err := s.Shuffle(q)
		if err != nil {
			return nil, err
		}
		out = append(out, sq)
	}
	return out, nil
}
