package usecase

import (
	"context"
	"strings"

	"healthcare-assistant/internal/domain"
)

const AgentTypeStatic = "static-fallback"

const medicalDisclaimer = "This information is for general education only and is not a substitute for professional medical advice, diagnosis, or treatment."

// EmergencyRedirect is returned for every high-urgency message that reaches
// the static tier, and prefixed to high-urgency answers from the other tiers.
const EmergencyRedirect = "⚠️ This sounds like it could be a medical emergency. Please call 911 (or your local emergency number) or go to the nearest emergency room immediately. Do not wait for an online response."

const (
	replyHeadache = "Headaches are often caused by tension, dehydration, lack of sleep, eye strain, or skipped meals. Rest in a quiet, dark room, drink water, and consider an over-the-counter pain reliever if it is safe for you. See a healthcare provider if headaches are frequent, unusually severe, follow a head injury, or come with vision changes, confusion, fever, or a stiff neck. " + medicalDisclaimer

	replyFever = "A mild fever is usually the body fighting an infection. Rest, stay hydrated, and monitor your temperature. Contact a healthcare provider if the fever is above 103°F (39.4°C), lasts more than three days, or comes with a rash, stiff neck, confusion, or difficulty breathing. " + medicalDisclaimer

	replySymptom = "Thank you for describing your symptoms. Keep track of when they started, how severe they are, and anything that makes them better or worse, and share that with a healthcare provider who can evaluate you properly. If symptoms worsen suddenly, seek care right away. " + medicalDisclaimer

	replyMedication = "For questions about dosing, side effects, or interactions, the safest source is your pharmacist or prescribing provider, who knows your full medication list. Always follow the label directions and do not stop or change a prescribed medication without talking to your provider. " + medicalDisclaimer

	replyAppointment = "To schedule, change, or cancel an appointment, please contact your clinic or provider's office directly or use their patient portal. Have your insurance details and a short summary of your concern ready. " + medicalDisclaimer

	replyMentalHealth = "It takes courage to talk about how you are feeling. Talking with a licensed mental health professional can help, and many offer telehealth visits. If you ever have thoughts of harming yourself, call or text 988 (the Suicide & Crisis Lifeline) right away. " + medicalDisclaimer

	replyPreventive = "Preventive care such as routine checkups, age-appropriate screenings, and recommended vaccinations helps catch problems early. Ask your primary care provider which screenings and immunizations are right for your age and health history. " + medicalDisclaimer

	replyWellness = "A healthy lifestyle generally includes a balanced diet rich in vegetables, fruits, whole grains, and lean proteins, regular physical activity (about 150 minutes of moderate exercise per week), 7–9 hours of sleep, staying hydrated, and managing stress. Small, consistent changes make the biggest difference. " + medicalDisclaimer

	replyGeneric = "I'm currently unable to give a detailed answer, but I'm here to help with general health information. For personal medical concerns, please consult a qualified healthcare provider. If this is an emergency, call 911 or go to the nearest emergency room. " + medicalDisclaimer
)

// staticRule maps a phrase pattern inside one intent to a finer canned reply.
type staticRule struct {
	intent   domain.Intent
	patterns []string
	reply    string
}

var staticRules = []staticRule{
	{intent: domain.IntentSymptomInquiry, patterns: []string{"headache", "migraine", "head hurts", "head ache"}, reply: replyHeadache},
	{intent: domain.IntentSymptomInquiry, patterns: []string{"fever", "temperature", "chills"}, reply: replyFever},
}

var staticIntentReplies = map[domain.Intent]string{
	domain.IntentSymptomInquiry:        replySymptom,
	domain.IntentMedicationQuestion:    replyMedication,
	domain.IntentAppointmentScheduling: replyAppointment,
	domain.IntentMentalHealth:          replyMentalHealth,
	domain.IntentPreventiveCare:        replyPreventive,
	domain.IntentGeneralHealth:         replyWellness,
}

// StaticGenerator is the deterministic last tier. It never fails and makes no
// network calls.
type StaticGenerator struct{}

func NewStaticGenerator() *StaticGenerator { return &StaticGenerator{} }

func (StaticGenerator) Tier() domain.Tier { return domain.TierStatic }

func (g StaticGenerator) Generate(_ context.Context, req GenerationRequest) (domain.GenerationResult, error) {
	return domain.GenerationResult{
		Text:      g.Reply(req.Message, req.Classification),
		AgentType: AgentTypeStatic,
		Citations: []string{},
		Tier:      domain.TierStatic,
	}, nil
}

// Reply picks the canned text for a message.
func (StaticGenerator) Reply(message string, c domain.Classification) string {
	if c.Urgency == domain.UrgencyHigh {
		return EmergencyRedirect
	}
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return replyGeneric
	}
	for _, r := range staticRules {
		if r.intent == c.Intent && containsAny(text, r.patterns) {
			return r.reply
		}
	}
	if reply, ok := staticIntentReplies[c.Intent]; ok {
		return reply
	}
	return replyGeneric
}

func containsAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
