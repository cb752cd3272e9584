package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "sjsage522/pricewatch/pkg/errors"
)

func TestTelegramSend(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier(server.URL+"/", "123:abc", "-100200")
	require.NoError(t, n.Send(context.Background(), "📉 Queda de preço!"))

	assert.Equal(t, "-100200", got["chat_id"])
	assert.Equal(t, "📉 Queda de preço!", got["text"])
	assert.Equal(t, false, got["disable_web_page_preview"])
}

func TestTelegramSendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	err := NewTelegramNotifier(server.URL, "123:abc", "nope").Send(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, werrors.ErrorTypeNotification, werrors.TypeOf(err))
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramSendRedactsToken(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	err := NewTelegramNotifier(server.URL, "secret-token", "chat").Send(context.Background(), "hi")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}
