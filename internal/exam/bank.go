package exam

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Bank is the admin side of the question bank.
type Bank struct {
	store Store
	log   *slog.Logger
}

func NewBank(store Store, log *slog.Logger) *Bank {
	if log == nil {
		log = slog.Default()
	}
	return &Bank{store: store, log: log}
}

// prepare normalises q and fills the id and the default masterclass.
func (b *Bank) prepare(ctx context.Context, tx Store, q *Question) error {
	q.Text = strings.TrimSpace(q.Text)
	q.TestType = TestType(strings.ToUpper(strings.TrimSpace(string(q.TestType))))
	q.CorrectChoice = Letter(strings.ToUpper(strings.TrimSpace(string(q.CorrectChoice))))
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.MasterclassID == "" {
		mc, err := tx.DefaultMasterclass(ctx)
		if err != nil {
			return err
		}
		q.MasterclassID = mc.ID
	} else if _, err := tx.GetMasterclass(ctx, q.MasterclassID); err != nil {
		return err
	}
	if q.CreatedAt == 0 {
		q.CreatedAt = time.Now().Unix()
	}
	return q.Validate()
}

func (b *Bank) Create(ctx context.Context, q Question) (Question, error) {
	err := b.store.InTx(ctx, func(tx Store) error {
		if err := b.prepare(ctx, tx, &q); err != nil {
			return err
		}
		return tx.CreateQuestion(ctx, q)
	})
	return q, err
}

func (b *Bank) Update(ctx context.Context, q Question) (Question, error) {
	if q.ID == "" {
		return Question{}, fmt.Errorf("%w: id required", ErrValidation)
	}
	err := b.store.InTx(ctx, func(tx Store) error {
		old, err := tx.GetQuestion(ctx, q.ID)
		if err != nil {
			return err
		}
		q.CreatedAt = old.CreatedAt
		if q.MasterclassID == "" {
			q.MasterclassID = old.MasterclassID
		}
		if err := b.prepare(ctx, tx, &q); err != nil {
			return err
		}
		return tx.UpdateQuestion(ctx, q)
	})
	return q, err
}

func (b *Bank) Delete(ctx context.Context, id string) error {
	return b.store.DeleteQuestion(ctx, id)
}

func (b *Bank) Get(ctx context.Context, id string) (Question, error) {
	return b.store.GetQuestion(ctx, id)
}

func (b *Bank) List(ctx context.Context, opts QuestionListOpts) ([]Question, error) {
	return b.store.ListQuestions(ctx, opts)
}

// Import inserts every question or none. Errors name the 1-based row.
func (b *Bank) Import(ctx context.Context, qs []Question) (int, error) {
	if len(qs) == 0 {
		return 0, fmt.Errorf("%w: no questions to import", ErrValidation)
	}
	err := b.store.InTx(ctx, func(tx Store) error {
		for i := range qs {
			if err := b.prepare(ctx, tx, &qs[i]); err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			if err := tx.CreateQuestion(ctx, qs[i]); err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		return tx.AppendEvent(ctx, "questions.imported", qs[0].MasterclassID, map[string]int{"count": len(qs)})
	})
	if err != nil {
		return 0, err
	}
	b.log.InfoContext(ctx, "questions imported", "count", len(qs))
	return len(qs), nil
}
