package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KNICEX/crypto-alert/internal/service/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "subj", payload["subject"])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewService(nil).Send(context.Background(), srv.URL, map[string]any{"subject": "subj", "body": "b"})
	require.NoError(t, err)
}

func TestService_Send_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewService(nil).Send(context.Background(), srv.URL, map[string]any{})
	var de *notification.DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "webhook", de.Channel)
}
