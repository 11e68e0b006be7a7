package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/model"
)

type fakeStore struct {
	runs []model.RetrainRun
	err  error
}

func (s *fakeStore) Upsert(_ context.Context, run *model.RetrainRun) error {
	if s.err != nil {
		return s.err
	}
	s.runs = append(s.runs, *run)
	return nil
}

func snapshot(t *testing.T) []byte {
	t.Helper()
	run := model.NewRetrainRun("run-1", time.Now())
	require.NoError(t, run.Advance(model.RetrainConnecting, time.Now()))
	body, err := json.Marshal(run)
	require.NoError(t, err)
	return body
}

func TestHandlePersistsSnapshot(t *testing.T) {
	store := &fakeStore{}
	w := NewRetrainRunWorker(nil, store, "q", nil)

	got := w.handle(context.Background(), snapshot(t), false)

	assert.Equal(t, ack, got)
	require.Len(t, store.runs, 1)
	assert.Equal(t, "run-1", store.runs[0].RunID)
	assert.Equal(t, model.RetrainConnecting, store.runs[0].State)
}

func TestHandleDropsUndecodable(t *testing.T) {
	store := &fakeStore{}
	w := NewRetrainRunWorker(nil, store, "q", nil)

	assert.Equal(t, drop, w.handle(context.Background(), []byte("{"), false))
	assert.Empty(t, store.runs)
}

func TestHandleRequeuesOnceOnStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("mysql gone")}
	w := NewRetrainRunWorker(nil, store, "q", nil)

	assert.Equal(t, requeue, w.handle(context.Background(), snapshot(t), false))
	assert.Equal(t, drop, w.handle(context.Background(), snapshot(t), true))
}
