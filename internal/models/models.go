package models

import "time"

type Role string

const (
	RoleProvider Role = "provider"
	RolePatient  Role = "patient"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "SCHEDULED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

type Appointment struct {
	ID                 string            `db:"id"`
	ProviderID         string            `db:"provider_id"`
	PatientID          string            `db:"patient_id"`
	Start              time.Time         `db:"start_time"`
	End                time.Time         `db:"end_time"`
	Status             AppointmentStatus `db:"status"`
	Notes              *string           `db:"notes"`
	CancellationReason *string           `db:"cancellation_reason"`
}

// AvailabilitySlot is one recurring weekly open-hours window of a provider.
// Times are wall-clock "HH:MM" strings, DayOfWeek is 0=Sunday..6=Saturday.
type AvailabilitySlot struct {
	ID         string `db:"id"`
	ProviderID string `db:"provider_id"`
	DayOfWeek  int    `db:"day_of_week"`
	StartTime  string `db:"start_time"`
	EndTime    string `db:"end_time"`
	IsActive   bool   `db:"is_active"`
}

type ProviderProfile struct {
	UserID              string `db:"user_id"`
	Specialty           string `db:"specialty"`
	Bio                 string `db:"bio"`
	LicenseNumber       string `db:"license_number"`
	AppointmentDuration int    `db:"appointment_duration"`
}

type Provider struct {
	ID      string
	Name    string
	Email   string
	Profile *ProviderProfile
	Slots   []AvailabilitySlot
}
