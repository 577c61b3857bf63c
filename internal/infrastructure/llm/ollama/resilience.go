package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx answer from the model server.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	msg := fmt.Sprintf("ollama %s: %s", e.Operation, e.Status)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

var (
	skipAttempt    = resilience.ErrorClassification{}
	retryAndRecord = resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	failAndRecord  = resilience.ErrorClassification{RecordFailure: true}
)

// classifyOllamaError retries 500 along with the gateway statuses: the
// server answers 500 while a model is still loading.
func classifyOllamaError(err error) resilience.ErrorClassification {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		resilience.IsCircuitOpen(err):
		return skipAttempt
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return retryAndRecord
		}
		return skipAttempt
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return retryAndRecord
	}
	return failAndRecord
}

// asTemporary marks failures a later call may not hit again.
func asTemporary(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if resilience.IsCircuitOpen(err) || classifyOllamaError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
