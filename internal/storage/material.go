package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mind-engage/masterclass/internal/exam"
)

// MaxMaterialSize bounds course PDF uploads.
const MaxMaterialSize = 5 << 20

var pdfMagic = []byte("%PDF-")

// MaterialKey is the blob key of a masterclass's course PDF.
func MaterialKey(masterclassID string) string {
	return "materials/" + masterclassID + ".pdf"
}

type MaterialStore interface {
	GetEnrollment(ctx context.Context, id string) (exam.Enrollment, error)
	DefaultMasterclass(ctx context.Context) (exam.Masterclass, error)
	GetMasterclass(ctx context.Context, id string) (exam.Masterclass, error)
	SetMaterialKey(ctx context.Context, masterclassID, key string) error
}

// Materials serves the course PDF attached to each masterclass.
type Materials struct {
	blobs BlobStore
	store MaterialStore
	log   *slog.Logger
}

func NewMaterials(blobs BlobStore, store MaterialStore, log *slog.Logger) *Materials {
	if log == nil {
		log = slog.Default()
	}
	return &Materials{blobs: blobs, store: store, log: log}
}

// Upload replaces the default masterclass's PDF. At most MaxMaterialSize+1
// bytes of r are read.
func (m *Materials) Upload(ctx context.Context, r io.Reader) (exam.Masterclass, error) {
	mc, err := m.store.DefaultMasterclass(ctx)
	if err != nil {
		return exam.Masterclass{}, err
	}
	body, err := io.ReadAll(io.LimitReader(r, MaxMaterialSize+1))
	if err != nil {
		return exam.Masterclass{}, err
	}
	switch {
	case len(body) > MaxMaterialSize:
		return exam.Masterclass{}, fmt.Errorf("%w: file exceeds 5 MB", exam.ErrValidation)
	case !bytes.HasPrefix(body, pdfMagic):
		return exam.Masterclass{}, fmt.Errorf("%w: file is not a PDF", exam.ErrValidation)
	}
	key, err := m.blobs.Put(MaterialKey(mc.ID), bytes.NewReader(body))
	if err != nil {
		return exam.Masterclass{}, fmt.Errorf("store material: %w", err)
	}
	if err := m.store.SetMaterialKey(ctx, mc.ID, key); err != nil {
		return exam.Masterclass{}, err
	}
	mc.MaterialKey = key
	m.log.InfoContext(ctx, "material uploaded", "masterclass_id", mc.ID, "bytes", len(body))
	return mc, nil
}

// Open returns the PDF of the enrollment's masterclass.
func (m *Materials) Open(ctx context.Context, enrollmentID string) (io.ReadCloser, exam.Masterclass, error) {
	enr, err := m.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, exam.Masterclass{}, err
	}
	mc, err := m.store.GetMasterclass(ctx, enr.MasterclassID)
	if err != nil {
		return nil, exam.Masterclass{}, err
	}
	if mc.MaterialKey == "" {
		return nil, mc, fmt.Errorf("no course material yet: %w", exam.ErrNotFound)
	}
	rc, err := m.blobs.Get(mc.MaterialKey)
	if errors.Is(err, ErrNotFound) {
		return nil, mc, fmt.Errorf("material %s: %w", mc.MaterialKey, exam.ErrNotFound)
	}
	return rc, mc, err
}
