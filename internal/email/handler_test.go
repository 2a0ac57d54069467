package email

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func send(h *Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.HandleSend(rec, httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(body)))
	return rec
}

func TestHandleSend(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"valid", `{"to":"Ana <ana@example.com>","subject":"Your order","body":"thanks"}`, http.StatusOK},
		{"bad json", `{`, http.StatusBadRequest},
		{"bad recipient", `{"to":"not-an-address","subject":"x"}`, http.StatusBadRequest},
		{"missing subject", `{"to":"ana@example.com","subject":"  "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, send(h, tt.body).Code)
		})
	}
}

func TestHandleOutbox(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Equal(t, http.StatusOK, send(h, `{"to":"ana@example.com","subject":"first"}`).Code)
	require.Equal(t, http.StatusOK, send(h, `{"to":"bob@example.com","subject":"second"}`).Code)
	require.Equal(t, http.StatusOK, send(h, `{"to":"ana@example.com","subject":"third"}`).Code)

	rec := httptest.NewRecorder()
	h.HandleOutbox(rec, httptest.NewRequest(http.MethodGet, "/messages?to=ana@example.com", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "third", msgs[0].Subject)
	assert.Equal(t, "first", msgs[1].Subject)
}

func TestOutboxIsBounded(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	for range outboxSize + 10 {
		send(h, `{"to":"ana@example.com","subject":"s"}`)
	}
	assert.Len(t, h.outbox, outboxSize)
}
