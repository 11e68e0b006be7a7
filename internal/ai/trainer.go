package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// TrainStream is an open retraining job. Body must be closed by the caller.
type TrainStream struct {
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
}

// TrainerClient starts jobs on the retraining service.
type TrainerClient struct {
	endpoint   string
	httpClient *http.Client
}

func NewTrainerClient(endpoint string) (*TrainerClient, error) {
	parsed, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, fmt.Errorf("trainer endpoint: %w", err)
	}
	return &TrainerClient{
		endpoint:   parsed,
		httpClient: newHTTPClient(),
	}, nil
}

// Start triggers a job and returns as soon as the upstream status line and
// headers are in. Cancelling ctx aborts the upstream connection, including
// while the body is being read.
func (c *TrainerClient) Start(ctx context.Context) (*TrainStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build retrain request failed: %w", err)
	}
	req.Header.Set("Accept", "text/plain, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrain request failed: %w", err)
	}

	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: raw}
	}

	return &TrainStream{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
	}, nil
}
