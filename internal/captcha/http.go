package captcha

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultAttempts = 3
	retryDelay      = 500 * time.Millisecond
	maxAnswerBytes  = 64 * 1024
	statusServerErr = 500
)

var (
	// ErrEmptyAnswer is returned when the service answers with no text.
	ErrEmptyAnswer = errors.New("solver returned an empty answer")
	// ErrNoEndpoint is returned when no solver URL is configured.
	ErrNoEndpoint = errors.New("solver endpoint not configured")
)

// HTTPSolver posts {"image": <base64>} and reads {"result": <text>}.
type HTTPSolver struct {
	endpoint string
	client   *http.Client
	attempts uint
}

// NewHTTPSolver creates a client for the recognition service at endpoint.
func NewHTTPSolver(endpoint string, timeout time.Duration, attempts int) *HTTPSolver {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	return &HTTPSolver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		attempts: uint(attempts),
	}
}

type solveRequest struct {
	Image string `json:"image"`
}

type solveResponse struct {
	Result string `json:"result"`
}

// Solve retries transport failures and server errors. Client errors and empty
// answers are not retried.
func (s *HTTPSolver) Solve(ctx context.Context, image []byte) (string, error) {
	if s.endpoint == "" {
		return "", ErrNoEndpoint
	}

	payload, err := json.Marshal(solveRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return "", fmt.Errorf("encode solve request: %w", err)
	}

	return retry.DoWithData(
		func() (string, error) {
			return s.post(ctx, payload)
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(retryDelay),
		retry.LastErrorOnly(true),
	)
}

func (s *HTTPSolver) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("solver request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= statusServerErr {
		return "", fmt.Errorf("solver status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", retry.Unrecoverable(fmt.Errorf("solver status %d", resp.StatusCode))
	}

	var out solveResponse
	if err = json.NewDecoder(io.LimitReader(resp.Body, maxAnswerBytes)).Decode(&out); err != nil {
		return "", retry.Unrecoverable(fmt.Errorf("decode solve response: %w", err))
	}
	answer := strings.TrimSpace(out.Result)
	if answer == "" {
		return "", retry.Unrecoverable(ErrEmptyAnswer)
	}
	return answer, nil
}
