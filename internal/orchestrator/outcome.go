package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/shelfsense/internal/providers"
)

// Kind tags the outcome of one attempt
type Kind string

const (
	KindSuccess  Kind = "success"
	KindTimeout  Kind = "timeout"
	KindQuota    Kind = "quota"
	KindEmpty    Kind = "empty"
	KindHTTP     Kind = "http"
	KindCanceled Kind = "canceled"
	KindOther    Kind = "other"
)

// ErrExhausted is matched by every *ExhaustedError
var ErrExhausted = errors.New("All AI Services Failed. Please try again later.")

// Classify maps an attempt error to its outcome kind
func Classify(err error) Kind {
	if err == nil {
		return KindSuccess
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, providers.ErrEmptyResponse) {
		return KindEmpty
	}

	var statusErr *providers.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return KindQuota
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return KindTimeout
		}
		return KindHTTP
	}

	// the Gemini SDK does not always surface a status code
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "quota") {
		return KindQuota
	}
	return KindOther
}

// Failure records why one candidate did not produce a result
type Failure struct {
	Label string
	Kind  Kind
	Err   error
}

// ExhaustedError is returned when every candidate failed
type ExhaustedError struct {
	Failures []Failure
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return ErrExhausted.Error() + " (no providers configured)"
	}
	reasons := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		reasons = append(reasons, fmt.Sprintf("%s [%s]: %v", f.Label, f.Kind, f.Err))
	}
	return ErrExhausted.Error() + " " + strings.Join(reasons, "; ")
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// OnlyQuota reports whether every candidate was rejected for quota
func (e *ExhaustedError) OnlyQuota() bool {
	if len(e.Failures) == 0 {
		return false
	}
	for _, f := range e.Failures {
		if f.Kind != KindQuota {
			return false
		}
	}
	return true
}
