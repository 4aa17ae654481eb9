package utils

import (
	"fmt"
	"strings"

	"github.com/encryptgate/threat-engine/internal/core"
)

// ExplainSystemPrompt is the fixed instruction shared by every explanation
// backend. The model explains an already-fused verdict; it must never
// re-score.
const ExplainSystemPrompt = `You are a security analyst assistant. You are given the output of an automated email threat assessment. Explain the verdict in plain language for a SOC analyst and suggest next steps. Do not re-score, re-classify, or contradict the verdict. After your explanation, list recommended actions as lines starting with "- ".`

// BuildExplanationInput condenses the three agent results and the fused
// verdict into the structured user payload sent to the explanation model
func BuildExplanationInput(email *core.Email, assessment *core.FusedAssessment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Email from %s to %s\nSubject: %s\n\n", email.From, strings.Join(email.To, ", "), email.Subject)
	fmt.Fprintf(&b, "Final verdict: score %d/100, threat level %s, phishing=%t\n\n",
		assessment.FinalScore, assessment.ThreatLevel, assessment.IsPhishing)

	if cls := assessment.Classifier; cls != nil {
		fmt.Fprintf(&b, "Classifier (model %s): phish score %.2f", cls.ModelVersion, cls.PhishScore)
		if len(cls.Labels) > 0 {
			fmt.Fprintf(&b, ", top label %q (%.2f)", cls.Labels[0].Label, cls.Labels[0].Score)
		}
		if cls.Error != "" {
			fmt.Fprintf(&b, " [degraded: %s]", cls.Error)
		}
		b.WriteString("\n")
	}

	if rep := assessment.Reputation; rep != nil {
		fmt.Fprintf(&b, "Reputation: aggregate %s (score %.2f)\n", rep.Aggregate, rep.Score)
		for _, a := range rep.Artifacts {
			if a.Verdict != core.VerdictClean {
				fmt.Fprintf(&b, "  %s %s: %s\n", a.Kind, a.Artifact, a.Verdict)
			}
		}
	}

	if ctx := assessment.Context; ctx != nil {
		fmt.Fprintf(&b, "Relationship context: score %.2f, first-time sender=%t, prior emails=%d, prior incidents=%d\n",
			ctx.ContextScore, ctx.IsFirstTimeSender, ctx.SenderEmailCount, ctx.SenderIncidentCount)
		for _, f := range ctx.Findings {
			fmt.Fprintf(&b, "  finding: %s\n", f)
		}
	}

	return b.String()
}

// ExtractRecommendedActions pulls action lines out of the model's free
// text. Best-effort line-prefix heuristic; the upstream format is not
// contractually structured, so misses are expected and acceptable.
func ExtractRecommendedActions(text string) []string {
	var actions []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, prefix := range []string{"- ", "* ", "• "} {
			if strings.HasPrefix(trimmed, prefix) {
				action := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
				if action != "" {
					actions = append(actions, action)
				}
				break
			}
		}
	}
	return actions
}

// UnavailableExplanation is the fallback result when the explanation
// backend cannot respond. Advisory only: empty actions, zero confidence.
func UnavailableExplanation(reason string) *core.ExplanationResult {
	return &core.ExplanationResult{
		Explanation:        fmt.Sprintf("Explanation unavailable: %s", reason),
		RecommendedActions: []string{},
		Confidence:         0,
	}
}
