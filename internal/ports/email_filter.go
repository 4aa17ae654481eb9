package ports

import (
	"context"

	"github.com/encryptgate/threat-engine/internal/core"
)

// EmailFilter defines the interface for the ingestion front end feeding the
// triage engine
type EmailFilter interface {
	// ProcessEmail runs the triage pipeline for a single email
	ProcessEmail(ctx context.Context, email *core.Email) (*core.FusedAssessment, error)

	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}
