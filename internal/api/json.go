package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/brief/internal/checksum"
)

// Request body limits.
const (
	maxDocumentBody = 10 << 20
	maxControlBody  = 1 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// writeDocument sends a document with its checksum as the ETag.
func writeDocument(w http.ResponseWriter, status int, doc *DocumentDetail) {
	w.Header().Set("ETag", checksum.ETag(doc.Checksum))
	writeJSON(w, status, doc)
}

// decodeRequest reads a bounded JSON body into dst and validates it. On
// failure it writes a 400 and returns false.
func decodeRequest(w http.ResponseWriter, r *http.Request, limit int64, dst validation.Validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := dst.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}
