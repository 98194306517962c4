package classify

import (
	"strings"

	"healthcare-assistant/internal/domain"
)

// Classifier scores messages against ordered intent keyword sets.
type Classifier struct {
	categories []Category
}

// NewClassifier copies the intent keywords out of t.
func NewClassifier(t Tables) *Classifier {
	return &Classifier{categories: t.clone().Intents}
}

// Classify returns the best matching intent and its confidence. Confidence is
// the share of the category's keywords found in the message. A message that
// matches nothing is general with confidence 0.
func (c *Classifier) Classify(message string) (domain.Intent, float64) {
	text := strings.ToLower(message)

	best := domain.IntentGeneral
	bestScore := 0.0
	for _, cat := range c.categories {
		matches := 0
		for _, k := range cat.Keywords {
			if strings.Contains(text, k) {
				matches++
			}
		}
		score := float64(matches) / float64(len(cat.Keywords))
		// Strictly greater keeps the first-seen category on ties.
		if score > bestScore {
			best = cat.Intent
			bestScore = score
		}
	}
	return best, bestScore
}

// Assessor tags a message with an urgency level.
type Assessor struct {
	urgent   []string
	moderate []string
}

// NewAssessor copies the urgency keywords out of t.
func NewAssessor(t Tables) *Assessor {
	u := t.clone().Urgency
	return &Assessor{urgent: u.Urgent, moderate: u.Moderate}
}

// Assess returns high if any urgent keyword appears, moderate if any
// moderate keyword appears, and low otherwise.
func (a *Assessor) Assess(message string) domain.Urgency {
	text := strings.ToLower(message)
	if containsAny(text, a.urgent) {
		return domain.UrgencyHigh
	}
	if containsAny(text, a.moderate) {
		return domain.UrgencyModerate
	}
	return domain.UrgencyLow
}

// Pipeline runs both passes over a message.
type Pipeline struct {
	classifier *Classifier
	assessor   *Assessor
}

// NewPipeline builds a classifier and an assessor from the same tables.
func NewPipeline(t Tables) *Pipeline {
	return &Pipeline{classifier: NewClassifier(t), assessor: NewAssessor(t)}
}

// Run classifies intent and assesses urgency for one message.
func (p *Pipeline) Run(message string) domain.Classification {
	intent, confidence := p.classifier.Classify(message)
	return domain.Classification{
		Intent:     intent,
		Confidence: confidence,
		Urgency:    p.assessor.Assess(message),
	}
}
