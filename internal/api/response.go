// Package api renders the tagged result envelope every storefront endpoint returns:
// {"success": true, "data": ...} or {"success": false, "error": {...}}.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind        domain.ErrorKind  `json:"kind"`
	Message     string            `json:"message"`
	VariationID string            `json:"variation_id,omitempty"`
	Available   *int              `json:"available,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// Err turns a decoded error body back into a *domain.Error.
func (b *ErrorBody) Err() *domain.Error {
	e := &domain.Error{Kind: b.Kind, Message: b.Message, VariationID: b.VariationID, Fields: b.Fields}
	if b.Available != nil {
		e.Available = *b.Available
	}
	return e
}

func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidQuantity, domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindEmptyCart, domain.KindItemUnavailable, domain.KindTransactionConflict:
		return http.StatusConflict
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type Responder struct {
	logger *slog.Logger
}

func NewResponder(logger *slog.Logger) *Responder {
	return &Responder{logger: logger}
}

func (r *Responder) OK(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		r.logger.Error("failed to encode response data", "error", err)
		r.Fail(w, err)
		return
	}
	r.write(w, status, Envelope{Success: true, Data: payload})
}

// Fail maps err to its kind. Untyped errors are logged and reported as a generic
// InternalError so no internal detail reaches the caller.
func (r *Responder) Fail(w http.ResponseWriter, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		r.logger.Error("internal error", "error", err)
		r.write(w, http.StatusInternalServerError, Envelope{Error: &ErrorBody{
			Kind:    domain.KindInternal,
			Message: "internal server error",
		}})
		return
	}

	body := &ErrorBody{
		Kind:        derr.Kind,
		Message:     derr.Message,
		VariationID: derr.VariationID,
		Fields:      derr.Fields,
	}
	if derr.Kind == domain.KindItemUnavailable {
		available := derr.Available
		body.Available = &available
	}
	r.write(w, StatusFor(derr.Kind), Envelope{Error: body})
}

// BadRequest reports an undecodable body as a ValidationError.
func (r *Responder) BadRequest(w http.ResponseWriter, message string) {
	r.write(w, http.StatusBadRequest, Envelope{Error: &ErrorBody{
		Kind:    domain.KindValidation,
		Message: message,
	}})
}

func (r *Responder) write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		r.logger.Error("failed to encode response", "error", err)
	}
}
