package usecase

import (
	"fmt"
	"strings"

	"healthcare-assistant/internal/domain"
)

// responseSections is the shape every direct-model answer must follow.
var responseSections = []string{
	"Assessment",
	"Analysis",
	"Recommendations",
	"Risk Flags",
	"Education",
	"Questions for Your Provider",
	"Follow-up",
	"Resources",
}

func buildSystemPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are a careful healthcare information assistant.",
		"You give general health information, never a diagnosis or a prescription.",
		"",
		"Behavior Rules:",
		"1) Answer only the current user message.",
		"2) Use plain language and keep the tone calm and supportive.",
		"3) State clearly when something needs a licensed professional.",
		"4) Never invent facts, doses or statistics.",
		"5) Always end with a short reminder that this is not medical advice.",
	}, "\n")
}

func buildUserPrompt(req GenerationRequest) string {
	var b strings.Builder

	c := req.Classification
	fmt.Fprintf(&b, "Classification:\n- Intent: %s\n- Confidence: %.2f\n- Urgency: %s\n- Focus: %s\n",
		c.Intent, c.Confidence, c.Urgency, focusFor(c.Intent))

	if notice := escalationNotice(c.Urgency); notice != "" {
		b.WriteString("\n")
		b.WriteString(notice)
		b.WriteString("\n")
	}

	if prior := normalizePromptInput(req.Session.PriorContext); prior != "" {
		fmt.Fprintf(&b, "\nPrior context from the user:\n%s\n", prior)
	}

	b.WriteString("\nOutput Contract:\n")
	b.WriteString("Structure the answer with these headed sections, in order:\n")
	for i, s := range responseSections {
		fmt.Fprintf(&b, "%d) %s\n", i+1, s)
	}

	fmt.Fprintf(&b, "\nUser message:\n%s", strings.TrimSpace(req.Message))
	return b.String()
}

func escalationNotice(u domain.Urgency) string {
	switch u {
	case domain.UrgencyHigh:
		return "URGENT: The message may describe a medical emergency. Open the answer by telling the user to call emergency services (911) or go to the nearest emergency room now."
	case domain.UrgencyModerate:
		return "ATTENTION: The message describes persistent or worsening symptoms. Recommend contacting a healthcare provider within 24 hours."
	default:
		return ""
	}
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
