package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/ai"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/model"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/platform/logger"
)

const (
	defaultRetrainTimeout = 30 * time.Minute
	relayBufferSize       = 32 << 10
	publishTimeout        = 5 * time.Second

	msgRetrainInProgress  = "A retraining job is already running. Wait for it to finish before starting a new one.\n"
	msgRetrainLockFailed  = "Error: Could not check whether another retraining job is running. Try again shortly.\n"
	msgTrainerUnreachable = "Error: Could not connect to the AI retraining service. Please ensure the retraining service is running.\n"
	msgTrainerTimeout     = "Error: The AI retraining service did not respond within the time limit.\n"
	msgTrainerRejected    = "Error: The AI retraining service refused the job (status %d).\n"

	trailerInterrupted = "\n--- ERROR: Lost connection to the AI retraining service before the job finished. The model may not have been updated. ---\n"
	trailerTimedOut    = "\n--- ERROR: Retraining exceeded the time limit and was aborted. The model may not have been updated. ---\n"
)

type TrainerClient interface {
	Start(ctx context.Context) (*ai.TrainStream, error)
}

// RetrainRelay starts a retraining job and copies its output to the client
// as it arrives. Nothing beyond one read buffer is held in memory.
type RetrainRelay struct {
	trainer   TrainerClient
	guard     JobGuard
	publisher RunPublisher
	timeout   time.Duration
	log       *logger.Logger

	now      func() time.Time
	newRunID func() string
}

type RetrainRelayOption func(*RetrainRelay)

func WithJobGuard(guard JobGuard) RetrainRelayOption {
	return func(r *RetrainRelay) {
		if guard != nil {
			r.guard = guard
		}
	}
}

func WithRunPublisher(publisher RunPublisher) RetrainRelayOption {
	return func(r *RetrainRelay) {
		if publisher != nil {
			r.publisher = publisher
		}
	}
}

func WithRelayLogger(log *logger.Logger) RetrainRelayOption {
	return func(r *RetrainRelay) {
		if log != nil {
			r.log = log
		}
	}
}

func NewRetrainRelay(trainer TrainerClient, timeout time.Duration, opts ...RetrainRelayOption) *RetrainRelay {
	if timeout <= 0 {
		timeout = defaultRetrainTimeout
	}
	r := &RetrainRelay{
		trainer:   trainer,
		guard:     NewLocalJobGuard(),
		publisher: NewNoopRunPublisher(),
		timeout:   timeout,
		log:       logger.Nop(),
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RetrainRelay) Timeout() time.Duration {
	return r.timeout
}

// Run drives one job from Idle to a terminal state, writing everything the
// client sees to w. ctx is the client's request context: cancelling it aborts
// the upstream job. The returned run is nil only when the guard refused.
func (r *RetrainRelay) Run(ctx context.Context, w http.ResponseWriter) (*model.RetrainRun, error) {
	run := model.NewRetrainRun(r.newRunID(), r.now())
	log := r.log.With("run_id", run.RunID)

	release, err := r.guard.TryAcquire(ctx, run.RunID)
	if err != nil {
		if errors.Is(err, ErrRetrainInProgress) {
			writeDiagnostic(w, http.StatusConflict, msgRetrainInProgress)
			return nil, err
		}
		writeDiagnostic(w, http.StatusServiceUnavailable, msgRetrainLockFailed)
		return nil, fmt.Errorf("acquire retrain guard failed: %w", err)
	}
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.advance(run, model.RetrainConnecting)
	r.publish(ctx, run)
	log.Info("retrain job starting")

	stream, err := r.trainer.Start(callCtx)
	if err != nil {
		classified := classifyUpstreamError(ctx, callCtx, err)
		status, text := connectFailureResponse(classified)
		run.UpstreamStatus = upstreamStatusOf(classified)
		r.finish(ctx, run, model.RetrainFailed, classified)
		if !errors.Is(classified, ErrClientGone) {
			writeDiagnostic(w, status, text)
		}
		log.Warn("retrain job failed before streaming", "status", status, "err", err)
		return run, classified
	}
	defer stream.Body.Close()

	run.UpstreamStatus = stream.StatusCode
	contentType := stream.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	header := w.Header()
	header.Set("Content-Type", contentType)
	header.Set("Cache-Control", "no-cache")
	header.Set("X-Accel-Buffering", "no")
	header.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(stream.StatusCode)

	flusher := http.NewResponseController(w)
	if err := flush(flusher); err != nil {
		cancel()
		r.finish(ctx, run, model.RetrainFailed, err)
		return run, fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	r.advance(run, model.RetrainStreaming)

	buf := make([]byte, relayBufferSize)
	for {
		n, readErr := stream.Body.Read(buf)
		if n > 0 {
			writeErr := writeChunk(w, flusher, buf[:n])
			if writeErr != nil {
				cancel()
				gone := fmt.Errorf("%w: %v", ErrClientGone, writeErr)
				r.finish(ctx, run, model.RetrainFailed, gone)
				log.Info("client left during retrain stream", "bytes", run.BytesRelayed)
				return run, gone
			}
			run.BytesRelayed += int64(n)
		}
		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			r.finish(ctx, run, model.RetrainCompleted, nil)
			log.Info("retrain job finished", "status", run.UpstreamStatus, "bytes", run.BytesRelayed, "duration", run.Duration())
			return run, nil
		}

		failure := classifyStreamError(ctx, callCtx, readErr)
		r.finish(ctx, run, model.RetrainFailed, failure)
		if errors.Is(failure, ErrClientGone) {
			log.Info("client left during retrain stream", "bytes", run.BytesRelayed)
			return run, failure
		}
		trailer := trailerInterrupted
		if errors.Is(failure, ErrUpstreamTimeout) {
			trailer = trailerTimedOut
		}
		_ = writeChunk(w, flusher, []byte(trailer))
		log.Warn("retrain stream broke", "bytes", run.BytesRelayed, "err", readErr)
		return run, failure
	}
}

func (r *RetrainRelay) advance(run *model.RetrainRun, to model.RetrainState) {
	if err := run.Advance(to, r.now()); err != nil {
		r.log.Error("retrain state machine", "run_id", run.RunID, "err", err)
	}
}

func (r *RetrainRelay) finish(ctx context.Context, run *model.RetrainRun, to model.RetrainState, cause error) {
	if cause != nil {
		run.Failure = truncateFailure(cause.Error())
	}
	r.advance(run, to)
	r.publish(ctx, run)
}

// publish outlives the client request so terminal snapshots of abandoned runs
// are still recorded.
func (r *RetrainRelay) publish(ctx context.Context, run *model.RetrainRun) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.publisher.PublishRun(pubCtx, *run); err != nil {
		r.log.Warn("publish retrain run failed", "run_id", run.RunID, "state", run.State, "err", err)
	}
}

func classifyStreamError(parent, callCtx context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
}

func connectFailureResponse(err error) (int, string) {
	var rejected *UpstreamRejectedError
	switch {
	case errors.As(err, &rejected):
		return rejected.StatusCode, fmt.Sprintf(msgTrainerRejected, rejected.StatusCode)
	case errors.Is(err, ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, msgTrainerTimeout
	default:
		return http.StatusBadGateway, msgTrainerUnreachable
	}
}

func upstreamStatusOf(err error) int {
	var rejected *UpstreamRejectedError
	if errors.As(err, &rejected) {
		return rejected.StatusCode
	}
	return 0
}

func writeDiagnostic(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}

func writeChunk(w io.Writer, rc *http.ResponseController, chunk []byte) error {
	if _, err := w.Write(chunk); err != nil {
		return err
	}
	return flush(rc)
}

func flush(rc *http.ResponseController) error {
	if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

func truncateFailure(s string) string {
	const limit = 512
	if len(s) <= limit {
		return s
	}
	return strings.ToValidUTF8(s[:limit], "")
}
