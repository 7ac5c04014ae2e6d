package api

import "time"

type CreateAppointmentRequest struct {
	ProviderID string  `json:"provider_id"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	Notes      *string `json:"notes,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type AppointmentResponse struct {
	ID                 string    `json:"id"`
	ProviderID         string    `json:"provider_id"`
	PatientID          string    `json:"patient_id"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	Status             string    `json:"status"`
	Notes              *string   `json:"notes,omitempty"`
	CancellationReason *string   `json:"cancellation_reason,omitempty"`
}

type AvailabilitySlotRequest struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type SetAvailabilityRequest struct {
	Slots []AvailabilitySlotRequest `json:"slots"`
}

type AvailabilitySlotResponse struct {
	ID        string `json:"id"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsActive  bool   `json:"is_active"`
}

type ProviderProfileResponse struct {
	Specialty           string `json:"specialty"`
	Bio                 string `json:"bio"`
	LicenseNumber       string `json:"license_number"`
	AppointmentDuration int    `json:"appointment_duration_minutes"`
}

type ProviderResponse struct {
	ID      string                     `json:"id"`
	Name    string                     `json:"name"`
	Email   string                     `json:"email"`
	Profile *ProviderProfileResponse   `json:"profile,omitempty"`
	Slots   []AvailabilitySlotResponse `json:"availability,omitempty"`
}
