package ports

import (
	"context"

	"scalpExecutor/internal/domain"
)

// FeedbackReporter notifies the signal originator about trade outcomes.
type FeedbackReporter interface {
	Report(ctx context.Context, feedback domain.Feedback) error
}

// AdmissionRequest describes a buy that is about to be placed.
type AdmissionRequest struct {
	StrategyID string
	Symbol     string
	Price      float64
	Quantity   float64
}

// AdmissionGate decides whether a new position may be opened.
type AdmissionGate interface {
	// Admit reserves capacity for the buy or returns an error wrapping ErrAdmissionRejected.
	Admit(ctx context.Context, req AdmissionRequest) error
	// Release returns the capacity reserved for a trade once it reaches a terminal status.
	Release(ctx context.Context, trade *domain.Trade)
}
