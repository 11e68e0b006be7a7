package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainerClientStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("loading pdfs\n"))
	}))
	defer srv.Close()

	client, err := NewTrainerClient(srv.URL)
	require.NoError(t, err)

	stream, err := client.Start(context.Background())
	require.NoError(t, err)
	defer stream.Body.Close()

	assert.Equal(t, http.StatusAccepted, stream.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", stream.ContentType)
	body, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	assert.Equal(t, "loading pdfs\n", string(body))
}

func TestTrainerClientStartStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Traceback (most recent call last): ...", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewTrainerClient(srv.URL)
	require.NoError(t, err)

	_, err = client.Start(context.Background())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestTrainerClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	client, err := NewTrainerClient(endpoint)
	require.NoError(t, err)

	_, err = client.Start(context.Background())
	require.Error(t, err)
	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}
