package adapter

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/unicc-ai/testbridge/internal/domain"
)

// ClassifyTransportError folds a client-side HTTP error into the adapter
// failure taxonomy. Already-classified errors pass through unchanged.
func ClassifyTransportError(agent string, err error) *domain.Error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTimeout("agent %s: request deadline exceeded", agent).WithCause(err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.ErrTimeout("agent %s: network timeout", agent).WithCause(err)
	}
	return domain.ErrUnreachable("agent %s: %v", agent, err).WithCause(err)
}

// ClassifyStatus folds a non-2xx upstream status into the taxonomy.
func ClassifyStatus(agent string, status int, body string) *domain.Error {
	if len(body) > 200 {
		body = body[:200]
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrAuthFailure("agent %s: upstream rejected credentials (status %d)", agent, status)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return domain.ErrTimeout("agent %s: upstream timed out (status %d)", agent, status)
	case status >= 500:
		return domain.ErrUnreachable("agent %s: upstream error (status %d): %s", agent, status, body)
	default:
		return domain.ErrMalformedResponse("agent %s: unexpected status %d: %s", agent, status, body)
	}
}
