package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/carparkfinder/backend/internal/api/middleware"
	apperrors "github.com/carparkfinder/backend/pkg/errors"
)

const maxBodyBytes = 64 << 10

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{"error": message})
}

// respondWithAppError maps err onto its HTTP status. Internal details are
// logged, never returned.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := apperrors.As(err); ok {
		if appErr.StatusCode() >= http.StatusInternalServerError {
			log.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
		}
		respondWithError(w, appErr.StatusCode(), appErr.Message)
		return
	}
	log.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
	respondWithError(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperrors.NewValidationError("invalid JSON body")
	}
	return nil
}

// clientID identifies the owner of per-client state.
func clientID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(middleware.ClientIDHeader))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("client_id"))
	}
	if len(id) > 128 {
		id = id[:128]
	}
	return id
}
