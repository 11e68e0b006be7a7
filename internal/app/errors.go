package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/ai"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrNoFileProvided       = errors.New("no file provided")
	ErrUnsupportedMediaType = errors.New("only PDF files are allowed")
	ErrPayloadTooLarge      = errors.New("file exceeds the upload size limit")
	ErrIOFailure            = errors.New("document storage failed")
	ErrDocumentNotFound     = errors.New("document not found")

	ErrUpstreamTimeout     = errors.New("upstream timed out")
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
	ErrClientGone          = errors.New("client disconnected")
	ErrRetrainInProgress   = errors.New("a retraining job is already running")
	ErrStreamInterrupted   = errors.New("retrain stream interrupted")

	ErrInvalidCredential = errors.New("invalid admin password")
)

// UpstreamRejectedError carries an upstream error status. Details is only set
// when the upstream body was well-formed JSON, so free-form text such as stack
// traces never reaches the client.
type UpstreamRejectedError struct {
	StatusCode int
	Details    json.RawMessage
}

func (e *UpstreamRejectedError) Error() string {
	return fmt.Sprintf("upstream rejected request with status %d", e.StatusCode)
}

// classifyUpstreamError maps a transport-level failure onto the error taxonomy.
// parent is the caller's context, callCtx the derived one carrying the budget.
func classifyUpstreamError(parent, callCtx context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}

	var statusErr *ai.StatusError
	if errors.As(err, &statusErr) {
		rejected := &UpstreamRejectedError{StatusCode: statusErr.StatusCode}
		if rejected.StatusCode < 400 {
			rejected.StatusCode = http.StatusBadGateway
		}
		if json.Valid(statusErr.Body) {
			rejected.Details = json.RawMessage(statusErr.Body)
		}
		return rejected
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
}
