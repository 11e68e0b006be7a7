package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/ai"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/model"
)

type recordingPublisher struct {
	mu     sync.Mutex
	states []model.RetrainState
	err    error
}

func (p *recordingPublisher) PublishRun(_ context.Context, run model.RetrainRun) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, run.State)
	return p.err
}

func (p *recordingPublisher) Seen() []model.RetrainState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.RetrainState(nil), p.states...)
}

// cancelOnWrite cancels the request context after the first body write, the
// way a browser closing the tab would.
type cancelOnWrite struct {
	*httptest.ResponseRecorder
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancelOnWrite) Write(p []byte) (int, error) {
	n, err := c.ResponseRecorder.Write(p)
	c.once.Do(c.cancel)
	return n, err
}

func newRelayFor(t *testing.T, url string, timeout time.Duration, opts ...RetrainRelayOption) *RetrainRelay {
	t.Helper()
	trainer, err := ai.NewTrainerClient(url)
	require.NoError(t, err)
	return NewRetrainRelay(trainer, timeout, opts...)
}

func runWithDeadline(t *testing.T, relay *RetrainRelay, ctx context.Context, w http.ResponseWriter) (*model.RetrainRun, error) {
	t.Helper()
	type result struct {
		run *model.RetrainRun
		err error
	}
	done := make(chan result, 1)
	go func() {
		run, err := relay.Run(ctx, w)
		done <- result{run, err}
	}()
	select {
	case res := <-done:
		return res.run, res.err
	case <-time.After(5 * time.Second):
		t.Fatal("retrain relay did not return")
		return nil, nil
	}
}

func TestRetrainRelaysChunksAndStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusAccepted)
		for _, chunk := range []string{"loading documents\n", "training\n", "done\n"} {
			_, _ = w.Write([]byte(chunk))
			w.(http.Flusher).Flush()
		}
	}))
	defer upstream.Close()

	publisher := &recordingPublisher{}
	relay := newRelayFor(t, upstream.URL, time.Second, WithRunPublisher(publisher))
	rec := httptest.NewRecorder()

	run, err := runWithDeadline(t, relay, context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "loading documents\ntraining\ndone\n", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.True(t, rec.Flushed)

	require.NotNil(t, run)
	assert.Equal(t, model.RetrainCompleted, run.State)
	assert.Equal(t, http.StatusAccepted, run.UpstreamStatus)
	assert.Equal(t, int64(len("loading documents\ntraining\ndone\n")), run.BytesRelayed)
	assert.NotNil(t, run.FinishedAt)
	assert.Equal(t, []model.RetrainState{model.RetrainConnecting, model.RetrainCompleted}, publisher.Seen())
}

func TestRetrainAppendsTrailerWhenUpstreamDrops(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("epoch 1/10\n"))
		w.(http.Flusher).Flush()
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	defer upstream.Close()

	relay := newRelayFor(t, upstream.URL, time.Minute)
	rec := httptest.NewRecorder()

	run, err := runWithDeadline(t, relay, context.Background(), rec)

	assert.ErrorIs(t, err, ErrStreamInterrupted)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "epoch 1/10\n"+trailerInterrupted, rec.Body.String())
	require.NotNil(t, run)
	assert.Equal(t, model.RetrainFailed, run.State)
	assert.NotEmpty(t, run.Failure)
}

func TestRetrainClientDisconnectAbortsUpstream(t *testing.T) {
	aborted := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		for i := 0; i < 500; i++ {
			_, _ = w.Write([]byte("tick\n"))
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
				close(aborted)
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}))
	defer upstream.Close()

	relay := newRelayFor(t, upstream.URL, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &cancelOnWrite{ResponseRecorder: httptest.NewRecorder(), cancel: cancel}

	run, err := runWithDeadline(t, relay, ctx, w)

	assert.ErrorIs(t, err, ErrClientGone)
	require.NotNil(t, run)
	assert.Equal(t, model.RetrainFailed, run.State)
	assert.NotContains(t, w.Body.String(), "--- ERROR")

	select {
	case <-aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("upstream request was not aborted")
	}
}

func TestRetrainRejectsConcurrentRun(t *testing.T) {
	started := make(chan struct{})
	var startedOnce sync.Once
	proceed := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("working\n"))
		w.(http.Flusher).Flush()
		startedOnce.Do(func() { close(started) })
		select {
		case <-proceed:
		case <-r.Context().Done():
		}
	}))
	defer upstream.Close()

	relay := newRelayFor(t, upstream.URL, time.Minute)

	firstDone := make(chan error, 1)
	firstRec := httptest.NewRecorder()
	go func() {
		_, err := relay.Run(context.Background(), firstRec)
		firstDone <- err
	}()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never reached upstream")
	}

	secondRec := httptest.NewRecorder()
	run, err := relay.Run(context.Background(), secondRec)
	assert.ErrorIs(t, err, ErrRetrainInProgress)
	assert.Nil(t, run)
	assert.Equal(t, http.StatusConflict, secondRec.Code)
	assert.Equal(t, msgRetrainInProgress, secondRec.Body.String())

	close(proceed)
	select {
	case err := <-firstDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not finish")
	}

	thirdRec := httptest.NewRecorder()
	_, err = runWithDeadline(t, relay, context.Background(), thirdRec)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, thirdRec.Code)
}

func TestRetrainUnreachableUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL + "/retrain"
	upstream.Close()

	publisher := &recordingPublisher{}
	relay := newRelayFor(t, url, time.Second, WithRunPublisher(publisher))
	rec := httptest.NewRecorder()

	run, err := runWithDeadline(t, relay, context.Background(), rec)

	assert.ErrorIs(t, err, ErrUpstreamUnreachable)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, msgTrainerUnreachable, rec.Body.String())
	require.NotNil(t, run)
	assert.Equal(t, model.RetrainFailed, run.State)
	assert.Equal(t, []model.RetrainState{model.RetrainConnecting, model.RetrainFailed}, publisher.Seen())
}

func TestRetrainUpstreamErrorStatusHidesBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Traceback (most recent call last): secret path", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	relay := newRelayFor(t, upstream.URL, time.Second)
	rec := httptest.NewRecorder()

	run, err := runWithDeadline(t, relay, context.Background(), rec)

	var rejected *UpstreamRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "status 500")
	assert.NotContains(t, rec.Body.String(), "Traceback")
	assert.Equal(t, http.StatusInternalServerError, run.UpstreamStatus)
}

func TestRetrainTimeoutBeforeHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer upstream.Close()

	relay := newRelayFor(t, upstream.URL, 50*time.Millisecond)
	rec := httptest.NewRecorder()

	_, err := runWithDeadline(t, relay, context.Background(), rec)

	assert.ErrorIs(t, err, ErrUpstreamTimeout)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, msgTrainerTimeout, rec.Body.String())
}

func TestRetrainTimeoutMidStream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("step 1\n"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer upstream.Close()

	relay := newRelayFor(t, upstream.URL, 150*time.Millisecond)
	rec := httptest.NewRecorder()

	run, err := runWithDeadline(t, relay, context.Background(), rec)

	assert.ErrorIs(t, err, ErrUpstreamTimeout)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "step 1\n"))
	assert.True(t, strings.HasSuffix(rec.Body.String(), trailerTimedOut))
	assert.Equal(t, model.RetrainFailed, run.State)
}

func TestRetrainPublisherFailureDoesNotBreakRelay(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	}))
	defer upstream.Close()

	publisher := &recordingPublisher{err: errors.New("broker down")}
	relay := newRelayFor(t, upstream.URL, time.Second, WithRunPublisher(publisher))
	rec := httptest.NewRecorder()

	run, err := runWithDeadline(t, relay, context.Background(), rec)

	require.NoError(t, err)
	assert.Equal(t, "ok\n", rec.Body.String())
	assert.Equal(t, model.RetrainCompleted, run.State)
}

type failingGuard struct{}

func (failingGuard) TryAcquire(context.Context, string) (func(), error) {
	return nil, errors.New("redis: connection refused")
}

func TestRetrainGuardBackendFailure(t *testing.T) {
	relay := NewRetrainRelay(nil, time.Second, WithJobGuard(failingGuard{}))
	rec := httptest.NewRecorder()

	run, err := relay.Run(context.Background(), rec)

	assert.Error(t, err)
	assert.Nil(t, run)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
