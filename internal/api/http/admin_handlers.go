package http

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/masterclass/internal/exam"
	"github.com/mind-engage/masterclass/internal/storage"
	syncx "github.com/mind-engage/masterclass/internal/sync"
)

// PUT /admin/material: a PDF as raw body or multipart file=.
func MaterialUploadHandler(m *storage.Materials) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, storage.MaxMaterialSize+(1<<20))
		var src io.Reader = r.Body
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				badRequest(w, "file required (max 5 MB)")
				return
			}
			defer f.Close()
			src = f
		}
		mc, err := m.Upload(r.Context(), src)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"masterclass_id": mc.ID, "key": mc.MaterialKey})
	}
}

// POST /admin/reminders/post-test {date}: date defaults to today in the
// event timezone.
func PostTestReminderHandler(svc *exam.Service, rem exam.Reminder, loc *time.Location) http.HandlerFunc {
	if loc == nil {
		loc = time.Local
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Date string `json:"date"`
		}
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, err)
				return
			}
		}
		if req.Date == "" {
			req.Date = time.Now().In(loc).Format(exam.SessionDateLayout)
		}
		n, err := svc.RemindPostTests(r.Context(), req.Date, rem)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"date": req.Date, "sent": n})
	}
}

// GET /admin/events?q=&limit=: recent audit rows whose type or key contains q.
func AuditSearchHandler(events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		out, err := events.Search(r.Context(), r.URL.Query().Get("q"), limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, out)
	}
}
