package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInferenceClientRejectsBadEndpoints(t *testing.T) {
	for _, endpoint := range []string{"", "   ", "localhost:5005", "ftp://rasa/webhook", "http://"} {
		_, err := NewInferenceClient(endpoint)
		assert.Error(t, err, "endpoint %q", endpoint)
	}
}

func TestInferenceClientSend(t *testing.T) {
	var got webhookRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"recipient_id":"s1","text":"hello"},
			{"recipient_id":"s1","custom":{"text":"answer","sources":[{"title":"a.pdf","url":"http://x/a.pdf#page=2","page":2}]}}
		]`))
	}))
	defer srv.Close()

	client, err := NewInferenceClient(srv.URL)
	require.NoError(t, err)

	messages, err := client.Send(context.Background(), "s1", "hi there")
	require.NoError(t, err)

	assert.Equal(t, webhookRequest{Sender: "s1", Message: "hi there"}, got)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Text)
	require.NotNil(t, messages[1].Custom)
	assert.Equal(t, "answer", messages[1].Custom.Text)
	require.Len(t, messages[1].Custom.Sources, 1)
	assert.JSONEq(t, "2", string(messages[1].Custom.Sources[0].Page))
}

func TestInferenceClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"failure","message":"model not loaded"}`))
	}))
	defer srv.Close()

	client, err := NewInferenceClient(srv.URL)
	require.NoError(t, err)

	_, err = client.Send(context.Background(), "s1", "hi")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.JSONEq(t, `{"status":"failure","message":"model not loaded"}`, string(statusErr.Body))
}

func TestInferenceClientMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	client, err := NewInferenceClient(srv.URL)
	require.NoError(t, err)

	_, err = client.Send(context.Background(), "s1", "hi")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestInferenceClientHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := NewInferenceClient(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Send(ctx, "s1", "hi")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
