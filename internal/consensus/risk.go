package consensus

import (
	"strings"

	"llm-defi-agent/internal/types"
)

var (
	// Keywords that mark a merged assessment HIGH when providers agree.
	mergeRiskTerms = []string{"high", "volatile"}
	// Keywords that select the smaller position size.
	sizingRiskTerms = []string{"high", "volatile", "unstable", "risky", "dangerous"}
)

// CombineRiskAssessments returns "HIGH" if any assessment mentions a high-risk keyword.
func CombineRiskAssessments(assessments ...string) string {
	for _, a := range assessments {
		if containsAny(a, mergeRiskTerms) {
			return string(types.RiskHigh)
		}
	}
	return string(types.RiskLow)
}

// AssessRiskLevel maps free-text risk assessment onto the sizing risk level.
func AssessRiskLevel(assessment string) types.RiskLevel {
	if containsAny(assessment, sizingRiskTerms) {
		return types.RiskHigh
	}
	return types.RiskLow
}

func containsAny(s string, terms []string) bool {
	s = strings.ToLower(s)
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
