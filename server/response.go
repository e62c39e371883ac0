package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/wudi/scanpdf/convert"
	"github.com/wudi/scanpdf/ocr"
	"github.com/wudi/scanpdf/store"
)

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Status: "error", Code: code, Message: message})
}

func writePDF(w http.ResponseWriter, res convert.Result) {
	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	h.Set("Content-Length", strconv.Itoa(len(res.PDF)))
	h.Set("X-Conversion-Id", res.ID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.PDF)
}

// mapError turns pipeline errors into an HTTP status and error code.
func mapError(err error) (int, string, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "TOO_LARGE", fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, convert.ErrEmptyInput):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "input is empty"
	case errors.Is(err, ocr.ErrUnsupportedImage):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "file is not a supported image"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "conversion not found"
	case errors.Is(err, convert.ErrUnavailable):
		return http.StatusGone, "GONE", "conversion output is not available"
	case errors.Is(err, convert.ErrBusy):
		return http.StatusServiceUnavailable, "BUSY", "all conversion slots are busy"
	default:
		return http.StatusInternalServerError, "CONVERSION_FAILED", "conversion failed"
	}
}
