package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/example/plant-store/internal/api/middleware"
	"github.com/example/plant-store/internal/apperr"
	"github.com/example/plant-store/internal/logger"
	"github.com/example/plant-store/internal/query"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message,omitempty"`
	Data       any               `json:"data,omitempty"`
	Pagination *query.Pagination `json:"pagination,omitempty"`
	Code       apperr.Kind       `json:"code,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Responder writes envelopes. Raw error detail is only included when
// exposeErrors is set.
type Responder struct {
	log          *logger.Logger
	exposeErrors bool
}

func NewResponder(log *logger.Logger, exposeErrors bool) *Responder {
	return &Responder{log: log.With("component", "api"), exposeErrors: exposeErrors}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (rs *Responder) OK(w http.ResponseWriter, message string, data any) {
	respondJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func (rs *Responder) Created(w http.ResponseWriter, message string, data any) {
	respondJSON(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Fail maps err to a status and envelope. fallback replaces the message of
// internal errors so driver detail never reaches the caller.
func (rs *Responder) Fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	message := apperr.MessageOf(err)
	if kind == apperr.KindInternal {
		message = fallback
	}

	env := Envelope{Success: false, Message: message, Code: kind}
	if details := apperr.DetailsOf(err); len(details) > 0 {
		env.Data = details
	}
	if rs.exposeErrors {
		env.Error = err.Error()
	}

	kv := []interface{}{
		"path", r.URL.Path,
		"kind", kind,
		"error", err,
		"request_id", middleware.GetRequestID(r.Context()),
	}
	if status >= http.StatusInternalServerError {
		rs.log.Error(fallback, kv...)
	} else {
		rs.log.Debug(message, kv...)
	}

	respondJSON(w, status, env)
}

// decodeJSON decodes an optional JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Wrap(apperr.KindInvalidArgument, "Request body too large", err)
	}
	return apperr.Wrap(apperr.KindInvalidArgument, "Invalid JSON body", err)
}
