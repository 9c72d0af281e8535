package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zmartlabs/zmartd/internal/domain"
)

// writeJSON marshals v as JSON and writes it with the given status code.
// If marshaling fails, it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a service error to an HTTP response. Domain
// sentinels carry their own message; anything unrecognized is a 500 logged
// with full detail and returned opaque.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, op string) {
	if status, ok := domainStatus(err); ok {
		writeError(w, status, err.Error())
		return
	}
	logger.ErrorContext(r.Context(), op+" failed",
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, op+" failed")
}

// domainStatus returns the HTTP status for a known domain sentinel.
func domainStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, true
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, true
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrDuplicateBet),
		errors.Is(err, domain.ErrDuplicateVote),
		errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, domain.ErrAlreadyResolved),
		errors.Is(err, domain.ErrAlreadyExecuted),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict, true
	case errors.Is(err, domain.ErrInvalidTimeRange),
		errors.Is(err, domain.ErrUnknownFeeConfig),
		errors.Is(err, domain.ErrQuestionTooLong),
		errors.Is(err, domain.ErrInvalidIdentity),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrBelowMinimumBet),
		errors.Is(err, domain.ErrSlippageExceeded),
		errors.Is(err, domain.ErrMarketNotActive),
		errors.Is(err, domain.ErrMarketNotYetEnded),
		errors.Is(err, domain.ErrMarketNotResolved),
		errors.Is(err, domain.ErrNotAWinner),
		errors.Is(err, domain.ErrProposalNotPending),
		errors.Is(err, domain.ErrProposalNotApproved),
		errors.Is(err, domain.ErrCounterExhausted):
		return http.StatusUnprocessableEntity, true
	}
	return 0, false
}

// parseListOpts extracts pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{Limit: limit, Offset: offset}
}

// pathParam extracts a named path parameter (Go 1.22+ routing).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// decodeBody decodes a JSON request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
