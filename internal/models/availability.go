package models

// AvailabilityState classifies a quiz window relative to "now".
type AvailabilityState string

// Possible availability states. These are informational, not errors.
const (
	AvailabilityReassigned   AvailabilityState = "reassigned"
	AvailabilityNotScheduled AvailabilityState = "not_scheduled"
	AvailabilityUpcoming     AvailabilityState = "upcoming"
	AvailabilityActive       AvailabilityState = "active"
	AvailabilityEnded        AvailabilityState = "ended"
)

// Availability is the result of evaluating a quiz window for a student.
type Availability struct {
	Available bool              `json:"available"`
	State     AvailabilityState `json:"state"`
	Message   string            `json:"message"`
}
