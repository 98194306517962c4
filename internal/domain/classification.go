package domain

// Intent is the coarse topic of a user message.
type Intent string

const (
	IntentSymptomInquiry        Intent = "symptomInquiry"
	IntentMedicationQuestion    Intent = "medicationQuestion"
	IntentAppointmentScheduling Intent = "appointmentScheduling"
	IntentMentalHealth          Intent = "mentalHealth"
	IntentPreventiveCare        Intent = "preventiveCare"
	IntentGeneralHealth         Intent = "generalHealth"
	IntentGeneral               Intent = "general"
)

// Urgency is the three-level severity tag of a message.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyModerate Urgency = "moderate"
	UrgencyHigh     Urgency = "high"
)

// Classification is recomputed for every request and never persisted.
type Classification struct {
	Intent     Intent
	Confidence float64
	Urgency    Urgency
}
