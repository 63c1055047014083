// Package feedback submits stage content to the external advisory service
// and normalizes whatever reply shape it answers with.
package feedback

import (
	"context"
	"errors"
)

var (
	// ErrMalformedResponse indicates the advisory service answered with none
	// of the recognized reply shapes.
	ErrMalformedResponse = errors.New("feedback: malformed response")
	// ErrUnavailable covers network failure, a non-success status, or a
	// malformed reply; the caller may retry manually.
	ErrUnavailable = errors.New("feedback: service unavailable")
)

// Request carries one stage's content to the advisory service.
type Request struct {
	Stage     string `json:"stage"`
	Content   string `json:"content"`
	StageName string `json:"stageName"`
}

// Client abstracts the advisory service so the engine can be exercised
// without the network.
type Client interface {
	Advise(ctx context.Context, req Request) (string, error)
}
