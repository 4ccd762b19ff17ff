package http

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/masterclass/internal/exam"
)

const maxImportBody = 4 << 20

// GET /admin/questions?masterclass_id=&type=&q=&limit=&offset=
func ListQuestionsHandler(bank *exam.Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qv := r.URL.Query()
		opts := exam.QuestionListOpts{MasterclassID: qv.Get("masterclass_id"), Q: qv.Get("q")}
		if t := qv.Get("type"); t != "" {
			tt, ok := exam.ParseTestType(t)
			if !ok {
				badRequest(w, "type must be PRE or POST")
				return
			}
			opts.Type = tt
		}
		opts.Limit, _ = strconv.Atoi(qv.Get("limit"))
		opts.Offset, _ = strconv.Atoi(qv.Get("offset"))
		list, err := bank.List(r.Context(), opts)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// GET /admin/questions/{id}
func GetQuestionHandler(bank *exam.Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := bank.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, q)
	}
}

// POST /admin/questions
func CreateQuestionHandler(bank *exam.Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q exam.Question
		if err := decodeJSON(w, r, &q); err != nil {
			writeError(w, r, err)
			return
		}
		q.ID = ""
		q, err := bank.Create(r.Context(), q)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, q)
	}
}

// PUT /admin/questions/{id}
func UpdateQuestionHandler(bank *exam.Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q exam.Question
		if err := decodeJSON(w, r, &q); err != nil {
			writeError(w, r, err)
			return
		}
		q.ID = chi.URLParam(r, "id")
		q, err := bank.Update(r.Context(), q)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, q)
	}
}

// DELETE /admin/questions/{id}
func DeleteQuestionHandler(bank *exam.Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := bank.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /admin/questions/import
// Accepts a multipart file= or a raw body, either a JSON array or CSV with a
// header row.
func ImportQuestionsHandler(bank *exam.Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)
		var src io.Reader = r.Body
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				badRequest(w, "file required")
				return
			}
			defer f.Close()
			src = f
		}
		qs, err := parseQuestions(src)
		if err != nil {
			writeError(w, r, err)
			return
		}
		n, err := bank.Import(r.Context(), qs)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]int{"imported": n})
	}
}

// parseQuestions sniffs the first non-space byte to pick JSON or CSV.
func parseQuestions(r io.Reader) ([]exam.Question, error) {
	br := bufio.NewReader(r)
	if b, _ := br.Peek(3); bytes.Equal(b, []byte("\xef\xbb\xbf")) {
		_, _ = br.Discard(3)
	}
	for {
		b, err := br.Peek(1)
		if err != nil {
			return nil, fmt.Errorf("%w: empty file", exam.ErrValidation)
		}
		if c := b[0]; c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			break
		}
		_, _ = br.ReadByte()
	}
	if b, _ := br.Peek(1); b[0] == '[' {
		var qs []exam.Question
		if err := json.NewDecoder(br).Decode(&qs); err != nil {
			return nil, fmt.Errorf("%w: bad json: %v", exam.ErrValidation, err)
		}
		return qs, nil
	}
	qs, err := parseQuestionsCSV(br)
	if err != nil {
		return nil, fmt.Errorf("%w: bad csv: %v", exam.ErrValidation, err)
	}
	return qs, nil
}

var csvChoiceCols = map[exam.Letter]string{
	exam.A: "choice_a", exam.B: "choice_b", exam.C: "choice_c", exam.D: "choice_d",
}

func parseQuestionsCSV(r io.Reader) ([]exam.Question, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	required := []string{"question_text", "choice_a", "choice_b", "choice_c", "choice_d", "correct_choice"}
	for _, k := range required {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	col := func(rec []string, name string) string {
		if i, ok := idx[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	var qs []exam.Question
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		q := exam.Question{
			MasterclassID: col(rec, "masterclass_id"),
			TestType:      exam.TestType(col(rec, "test_type")),
			Text:          col(rec, "question_text"),
			Choices:       exam.Choices{},
			CorrectChoice: exam.Letter(col(rec, "correct_choice")),
		}
		for l, name := range csvChoiceCols {
			q.Choices[l] = col(rec, name)
		}
		qs = append(qs, q)
	}
	return qs, nil
}
