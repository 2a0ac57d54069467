// Package email is a stand-in mail relay. It validates and logs messages and keeps
// the most recent ones in memory for inspection.
package email

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const outboxSize = 100

type Message struct {
	ID      string    `json:"id"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

type Handler struct {
	logger *slog.Logger

	mu     sync.Mutex
	outbox []Message
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type sendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	addr, err := mail.ParseAddress(strings.TrimSpace(req.To))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid recipient")
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		h.writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	msg := Message{
		ID:      uuid.NewString(),
		To:      addr.Address,
		Subject: req.Subject,
		Body:    req.Body,
		SentAt:  time.Now().UTC(),
	}

	h.mu.Lock()
	h.outbox = append(h.outbox, msg)
	if len(h.outbox) > outboxSize {
		h.outbox = h.outbox[len(h.outbox)-outboxSize:]
	}
	h.mu.Unlock()

	h.logger.Info("email sent", "id", msg.ID, "to", msg.To, "subject", msg.Subject)

	h.writeJSON(w, http.StatusOK, sendResponse{ID: msg.ID, Status: "sent"})
}

// HandleOutbox lists sent messages newest first, optionally filtered by ?to=.
func (h *Handler) HandleOutbox(w http.ResponseWriter, r *http.Request) {
	to := r.URL.Query().Get("to")

	h.mu.Lock()
	out := make([]Message, 0, len(h.outbox))
	for i := len(h.outbox) - 1; i >= 0; i-- {
		if to == "" || strings.EqualFold(h.outbox[i].To, to) {
			out = append(out, h.outbox[i])
		}
	}
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
