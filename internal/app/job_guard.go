package app

import (
	"context"
	"sync"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/model"
)

// JobGuard admits at most one retraining run at a time. TryAcquire returns
// ErrRetrainInProgress when another run holds the guard.
type JobGuard interface {
	TryAcquire(ctx context.Context, runID string) (release func(), err error)
}

// RunPublisher receives lifecycle snapshots of retraining runs.
type RunPublisher interface {
	PublishRun(ctx context.Context, run model.RetrainRun) error
}

type localJobGuard struct {
	mu    sync.Mutex
	owner string
}

// NewLocalJobGuard guards runs within this process only.
func NewLocalJobGuard() JobGuard {
	return &localJobGuard{}
}

func (g *localJobGuard) TryAcquire(_ context.Context, runID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owner != "" {
		return nil, ErrRetrainInProgress
	}
	g.owner = runID

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if g.owner == runID {
				g.owner = ""
			}
		})
	}, nil
}

type noopJobGuard struct{}

// NewNoopJobGuard admits every run. Used when single-flight is disabled.
func NewNoopJobGuard() JobGuard {
	return noopJobGuard{}
}

func (noopJobGuard) TryAcquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

type noopRunPublisher struct{}

func NewNoopRunPublisher() RunPublisher {
	return noopRunPublisher{}
}

func (noopRunPublisher) PublishRun(context.Context, model.RetrainRun) error {
	return nil
}
