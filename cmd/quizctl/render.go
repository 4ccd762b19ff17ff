package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mind-engage/masterclass/internal/exam"
	"github.com/mind-engage/masterclass/internal/quiz"
)

// renderer prints runner snapshots. Countdown ticks only print at the
// warning marks so the terminal stays readable.
type renderer struct {
	mu   sync.Mutex
	w    io.Writer
	last quiz.Snapshot
	seen bool
	done chan struct{}
	once sync.Once
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{w: w, done: make(chan struct{})}
}

var warnAt = map[time.Duration]bool{10 * time.Second: true, 5 * time.Second: true}

func (r *renderer) OnChange(s quiz.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, seen := r.last, r.seen
	r.last, r.seen = s, true

	switch s.State {
	case quiz.Completed:
		if s.Outcome != nil {
			r.outcome(*s.Outcome)
		}
		r.finish()
		return
	case quiz.Failed:
		fmt.Fprintf(r.w, "\nsubmission failed: %v\ntype s to retry\n", s.Err)
		return
	case quiz.Closed:
		r.finish()
		return
	case quiz.Submitting:
		fmt.Fprintln(r.w, "\nsubmitting...")
		return
	}

	if !seen || prev.Index != s.Index || prev.State != s.State || prev.Question.ID != s.Question.ID {
		r.question(s)
		return
	}
	if prev.Selected != s.Selected {
		fmt.Fprintf(r.w, "selected %s (%d/%d answered)\n", s.Selected, s.Answered, s.Total)
	}
	if s.Expired && !prev.Expired {
		fmt.Fprintf(r.w, "time is up: %d unanswered, answer them and press s\n", s.Total-s.Answered)
		return
	}
	if s.Remaining != prev.Remaining && warnAt[s.Remaining] {
		fmt.Fprintf(r.w, "%ds left\n", int(s.Remaining/time.Second))
	}
}

func (r *renderer) question(s quiz.Snapshot) {
	fmt.Fprintf(r.w, "\nQuestion %d/%d  (%ds)\n%s\n", s.Index+1, s.Total, int(s.Remaining/time.Second), s.Question.Text)
	for _, l := range exam.Letters {
		mark := " "
		if s.Selected == l {
			mark = "*"
		}
		fmt.Fprintf(r.w, " %s %s) %s\n", mark, l, s.Question.Choices[l])
	}
	fmt.Fprintln(r.w, "[a-d] answer  [n]ext  [p]rev  [s]ubmit  [q]uit")
}

func (r *renderer) outcome(o exam.Outcome) {
	verdict := "not validated"
	if o.Passed {
		verdict = "validated"
	}
	fmt.Fprintf(r.w, "\nscore %d/%d (%d%%): %s\n", o.Score, o.MaxScore, o.Percentage, verdict)
}

func (r *renderer) finish() { r.once.Do(func() { close(r.done) }) }

// Done is closed once the attempt is completed or closed.
func (r *renderer) Done() <-chan struct{} { return r.done }
