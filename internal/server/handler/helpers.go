package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/auctioneer/internal/crypto"
	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// errorBody is the JSON shape of every failure.
type errorBody struct {
	Error string `json:"error"`
	Code  any    `json:"code,omitempty"`
	Name  string `json:"name,omitempty"`
}

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

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// kindStatus maps taxonomy kinds onto HTTP statuses.
var kindStatus = map[domain.Kind]int{
	domain.KindUnauthorized:            http.StatusForbidden,
	domain.KindAlreadyExists:           http.StatusConflict,
	domain.KindNotFound:                http.StatusNotFound,
	domain.KindMalformedForwardRequest: http.StatusBadRequest,
	domain.KindInvalidTiming:           http.StatusUnprocessableEntity,
	domain.KindInvalidBid:              http.StatusUnprocessableEntity,
	domain.KindNotHighestBidder:        http.StatusUnprocessableEntity,
	domain.KindNoValidNonce:            http.StatusUnprocessableEntity,
	domain.KindInvalidState:            http.StatusUnprocessableEntity,
}

// StatusOf returns the HTTP status and body for err.
func StatusOf(err error) (int, errorBody) {
	if e, ok := domain.AsError(err); ok {
		status, found := kindStatus[e.Kind]
		if !found {
			status = http.StatusUnprocessableEntity
		}
		return status, errorBody{Error: e.Message, Code: uint32(e.Code), Name: e.Name}
	}
	if ee, ok := domain.AsEngineError(err); ok {
		return http.StatusBadGateway, errorBody{Error: ee.Message, Code: ee.Code, Name: "EngineError"}
	}
	switch {
	case errors.Is(err, crypto.ErrBadSignature), errors.Is(err, crypto.ErrStaleRequest):
		return http.StatusUnauthorized, errorBody{Error: err.Error()}
	case errors.Is(err, crypto.ErrReplayedRequest):
		return http.StatusConflict, errorBody{Error: err.Error()}
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found"}
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, errorBody{Error: "rate limited"}
	case errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict, errorBody{Error: "listing busy, retry"}
	case errors.Is(err, domain.ErrStaleWrite):
		return http.StatusConflict, errorBody{Error: "listing changed, retry"}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error"}
}

// writeFailure logs unexpected failures and writes the mapped body.
func writeFailure(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, body := StatusOf(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, body)
}

// parseListOpts reads limit (default 50, max 500) and offset.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = min(n, 500)
	}
	offset := 0
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		offset = n
	}
	return domain.ListOpts{Limit: limit, Offset: offset}
}

// addressParam parses a base58 path value or query value.
func addressParam(value, name string) (domain.Address, error) {
	if value == "" {
		return domain.ZeroAddress, &paramError{name: name, msg: "is required"}
	}
	a, err := domain.ParseAddress(value)
	if err != nil {
		return domain.ZeroAddress, &paramError{name: name, msg: err.Error()}
	}
	return a, nil
}

type paramError struct {
	name string
	msg  string
}

func (e *paramError) Error() string { return e.name + " " + e.msg }

func (e *paramError) Unwrap() error { return domain.ErrBadRequest }
