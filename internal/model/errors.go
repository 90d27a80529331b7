package model

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNoBackends = errors.New("no model backends configured")

	errModelRequired = errors.New("model is required")
	errMaxTokens     = errors.New("max tokens must be greater than zero")
	errNoMessages    = errors.New("at least one message is required")
)

// ErrorDetail is one entry of a structured provider error payload.
type ErrorDetail struct {
	Type   string `json:"@type"`
	Reason string `json:"reason"`
}

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Status     string
	Message    string
	Details    []ErrorDetail
}

func (e *APIError) Error() string {
	status := e.Status
	if status == "" {
		status = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s api status %d (%s): %s", e.Provider, e.StatusCode, status, e.Message)
}

var rateLimitPhrases = []string{"429", "rate limit", "quota", "resource exhausted", "too many requests"}

// IsRateLimit reports whether err indicates the backend is throttling or out
// of quota, as opposed to failing for some other reason.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if strings.Contains(strings.ToLower(apiErr.Status), "too many requests") {
		return true
	}
	for _, detail := range apiErr.Details {
		if detail.Reason == "RATE_LIMIT_EXCEEDED" || strings.Contains(detail.Type, "QuotaFailure") {
			return true
		}
	}
	return false
}

// ExhaustedError is returned when every backend of a tier failed.
type ExhaustedError struct {
	Tier     string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d models failed for tier %s: %v", e.Attempts, e.Tier, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}
