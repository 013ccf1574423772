package quizgen

import (
	"github.com/studyquest/backend/internal/models"
)

const (
	QualityPassed  = "passed"
	QualityFlagged = "flagged"
	QualityReject  = "reject"
)

// StructuralScore holds the individual structural checks for one question.
type StructuralScore struct {
	QuestionLengthOK  bool
	ChoicesBalancedOK bool
	ExplanationOK     bool
	GroundedOK        bool
}

// ComputeStructuralScore checks q against the material it was generated from.
func ComputeStructuralScore(q models.QuizQuestion, material map[string]bool) StructuralScore {
	qLen := len(q.Question)

	shortest, longest := -1, 0
	for _, c := range q.Choices {
		if shortest < 0 || len(c) < shortest {
			shortest = len(c)
		}
		if len(c) > longest {
			longest = len(c)
		}
	}

	grounded := false
	for token := range tokenize(q.Question + " " + q.Explanation) {
		if material[token] {
			grounded = true
			break
		}
	}

	return StructuralScore{
		QuestionLengthOK: qLen >= 20 && qLen <= 300,
		// A correct choice far longer than the rest gives the answer away.
		ChoicesBalancedOK: shortest > 0 && longest <= 3*shortest,
		ExplanationOK:     len(q.Explanation) >= 20,
		GroundedOK:        grounded,
	}
}

// ComputeQualityScore weights the four checks equally (0.0-1.0).
func ComputeQualityScore(s StructuralScore) float64 {
	score := 0.0
	for _, ok := range []bool{s.QuestionLengthOK, s.ChoicesBalancedOK, s.ExplanationOK, s.GroundedOK} {
		if ok {
			score += 0.25
		}
	}
	return score
}

// ClassifyQuality returns "reject" (< 0.50), "flagged" (0.50-0.75) or "passed".
func ClassifyQuality(score float64) string {
	if score < 0.50 {
		return QualityReject
	}
	if score <= 0.75 {
		return QualityFlagged
	}
	return QualityPassed
}
