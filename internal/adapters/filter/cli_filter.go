package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/encryptgate/threat-engine/internal/core"
	"go.uber.org/zap"
)

// CliFilter runs the triage pipeline once and prints the verdict
type CliFilter struct {
	service *core.TriageService
	logger  *zap.Logger
	verbose bool
}

// NewCliFilter creates a new CLI filter
func NewCliFilter(service *core.TriageService, logger *zap.Logger, verbose bool) (*CliFilter, error) {
	return &CliFilter{
		service: service,
		logger:  logger,
		verbose: verbose,
	}, nil
}

// ProcessEmail evaluates an email and displays the assessment
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.FusedAssessment, error) {
	f.logger.Debug("Processing email", zap.String("sender", email.From))

	assessment, detection, err := f.service.ProcessEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	fmt.Println("=== Threat Assessment ===")
	fmt.Printf("Sender:        %s\n", email.From)
	fmt.Printf("Subject:       %s\n", email.Subject)
	fmt.Printf("Final score:   %d/100\n", assessment.FinalScore)
	fmt.Printf("Threat level:  %s\n", assessment.ThreatLevel)
	fmt.Printf("Phishing:      %t\n", assessment.IsPhishing)

	if f.verbose {
		fmt.Println()
		fmt.Printf("Classifier:    %.2f (model %s)\n", assessment.PhishScore, assessment.ModelVersion)
		if assessment.Classifier != nil && assessment.Classifier.Error != "" {
			fmt.Printf("               degraded: %s\n", assessment.Classifier.Error)
		}
		fmt.Printf("Reputation:    %.2f", assessment.VTScore)
		if assessment.Reputation != nil {
			fmt.Printf(" (%s)", assessment.Reputation.Aggregate)
		}
		fmt.Println()
		fmt.Printf("Context:       %.2f\n", assessment.ContextScore)
		if assessment.Context != nil {
			for _, finding := range assessment.Context.Findings {
				fmt.Printf("               %s\n", finding)
			}
		}
	}

	if assessment.Explanation != nil && assessment.Explanation.Explanation != "" {
		fmt.Println()
		fmt.Println("Explanation:")
		fmt.Println(indent(assessment.Explanation.Explanation, "  "))
		if len(assessment.Explanation.RecommendedActions) > 0 {
			fmt.Println("Recommended actions:")
			for _, action := range assessment.Explanation.RecommendedActions {
				fmt.Printf("  - %s\n", action)
			}
		}
	}

	if detection != nil {
		fmt.Println()
		fmt.Printf("Detection opened: %s (%s)\n", detection.UniqueID, detection.Severity)
	}

	return assessment, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
