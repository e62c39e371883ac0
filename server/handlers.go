package server

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wudi/scanpdf/convert"
	"github.com/wudi/scanpdf/observability"
	"github.com/wudi/scanpdf/ocr"
	"github.com/wudi/scanpdf/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// parseForm reads urlencoded and multipart bodies. Multipart files are kept
// in memory up to the body limit.
func (s *Server) parseForm(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.ParseForm()
	}
	maxMemory := s.cfg.MaxUploadBytes
	if maxMemory <= 0 {
		maxMemory = 32 << 20
	}
	return r.ParseMultipartForm(maxMemory)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(r); err != nil {
		s.formError(w, r, err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "field \"file\" is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.formError(w, r, err)
		return
	}

	psm := 0
	if raw := strings.TrimSpace(r.FormValue("psm")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !ocr.ValidPageSegMode(n) {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "psm must be between 1 and 13")
			return
		}
		psm = n
	}

	res, err := s.conv.FromImage(r.Context(), convert.ImageRequest{
		Data:         data,
		Filename:     header.Filename,
		Languages:    splitLanguages(r.FormValue("lang")),
		IncludeImage: formBool(r.FormValue("include_image")),
		PageSegMode:  psm,
		Whitelist:    r.FormValue("whitelist"),
	})
	if err != nil {
		s.conversionError(w, r, err)
		return
	}
	writePDF(w, res)
}

func (s *Server) formConversion(field string, run func(context.Context, string) (convert.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.parseForm(r); err != nil {
			s.formError(w, r, err)
			return
		}
		values, ok := r.Form[field]
		if !ok || len(values) == 0 || values[0] == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "field \""+field+"\" is required")
			return
		}
		res, err := run(r.Context(), values[0])
		if err != nil {
			s.conversionError(w, r, err)
			return
		}
		writePDF(w, res)
	}
}

func (s *Server) listConversions(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}
	out := []store.Conversion{}
	if s.history != nil {
		list, err := s.history.List(r.Context(), limit)
		if err != nil {
			s.conversionError(w, r, err)
			return
		}
		if list != nil {
			out = list
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getConversion(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.conversionError(w, r, store.ErrNotFound)
		return
	}
	c, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.conversionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) conversionPDF(w http.ResponseWriter, r *http.Request) {
	res, err := s.conv.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.conversionError(w, r, err)
		return
	}
	writePDF(w, res)
}

func (s *Server) formError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) && s.cfg.MaxUploadBytes > 0 && r.ContentLength > s.cfg.MaxUploadBytes {
		err = &http.MaxBytesError{Limit: s.cfg.MaxUploadBytes}
	}
	if errors.As(err, &tooLarge) {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed form body")
}

func (s *Server) conversionError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			observability.String("path", r.URL.Path),
			observability.Error("error", err),
		)
	}
	writeError(w, status, code, msg)
}

func splitLanguages(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == '+' || r == ',' || r == ' '
	})
}

func formBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
