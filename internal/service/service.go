package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clinic-scheduler/api"
	"clinic-scheduler/internal/lock"
	"clinic-scheduler/internal/models"
	"clinic-scheduler/internal/schedule"
	"clinic-scheduler/pkg/response"
)

type Service struct {
	store  Store
	locker lock.Locker
}

func NewService(store Store, locker lock.Locker) *Service {
	return &Service{store: store, locker: locker}
}

type Store interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Appointments
	ListScheduledForProviderTx(ctx context.Context, tx *sql.Tx, providerID string) ([]models.Appointment, error)
	InsertAppointmentTx(ctx context.Context, tx *sql.Tx, appointment *models.Appointment) (string, error)
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus, reason *string) error
	ListAppointmentsForUser(ctx context.Context, userID string, role models.Role) ([]models.Appointment, error)

	// Providers
	ListProviders(ctx context.Context) ([]models.Provider, error)
	GetProvider(ctx context.Context, id string) (*models.Provider, error)
	GetProviderProfile(ctx context.Context, providerID string) (*models.ProviderProfile, error)

	// Availability
	GetProviderAvailability(ctx context.Context, providerID string) ([]models.AvailabilitySlot, error)
	ReplaceAvailabilityTx(ctx context.Context, tx *sql.Tx, providerID string, slots []models.AvailabilitySlot) error
}

// Appointments

// CreateAppointment books [start, end) for the patient with the given
// provider. The conflict check and the insert run under a per-provider lock
// and a single transaction, so two overlapping requests cannot both pass the
// check before either commits.
func (s *Service) CreateAppointment(ctx context.Context, patientID string, req *api.CreateAppointmentRequest) (*api.AppointmentResponse, error) {
	const op = "service.CreateAppointment"

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid start_time: %w", op, response.ErrBadRequest)
	}

	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid end_time: %w", op, response.ErrBadRequest)
	}

	if !end.After(start) {
		return nil, fmt.Errorf("%s: end_time must be after start_time: %w", op, response.ErrBadRequest)
	}

	lockKey := fmt.Sprintf("provider:%s", req.ProviderID)

	locked, err := s.locker.Lock(ctx, lockKey, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	existing, err := s.store.ListScheduledForProviderTx(ctx, tx, req.ProviderID)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, found := schedule.FindConflict(existing, start, end); found {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: time slot is already booked: %w", op, response.ErrConflict)
	}

	appointment := &models.Appointment{
		ProviderID: req.ProviderID,
		PatientID:  patientID,
		Start:      start.UTC(),
		End:        end.UTC(),
		Status:     models.StatusScheduled,
		Notes:      req.Notes,
	}

	id, err := s.store.InsertAppointmentTx(ctx, tx, appointment)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: create appointment: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	created, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toAppointmentResponse(created), nil
}

// GetAppointment returns the appointment if the acting user participates in
// it, as its provider or its patient.
func (s *Service) GetAppointment(ctx context.Context, id, userID string, role models.Role) (*api.AppointmentResponse, error) {
	const op = "service.GetAppointment"

	appointment, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !isParticipant(appointment, userID) {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	return toAppointmentResponse(appointment), nil
}

// ListAppointments returns the user's appointments ordered ascending by start
// time. Providers see appointments where they are the provider, patients
// where they are the patient.
func (s *Service) ListAppointments(ctx context.Context, userID string, role models.Role) ([]*api.AppointmentResponse, error) {
	const op = "service.ListAppointments"

	appointments, err := s.store.ListAppointmentsForUser(ctx, userID, role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.AppointmentResponse, 0, len(appointments))
	for i := range appointments {
		result = append(result, toAppointmentResponse(&appointments[i]))
	}

	return result, nil
}

// CancelAppointment transitions SCHEDULED to CANCELLED. Only a participant
// may cancel; any other current status is rejected, so a second cancel of the
// same appointment fails rather than no-op.
func (s *Service) CancelAppointment(ctx context.Context, id, userID string, role models.Role, reason *string) (*api.AppointmentResponse, error) {
	const op = "service.CancelAppointment"

	appointment, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !isParticipant(appointment, userID) {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	if appointment.Status != models.StatusScheduled {
		return nil, fmt.Errorf("%s: only scheduled appointments can be cancelled: %w", op, response.ErrConflict)
	}

	err = s.store.UpdateAppointmentStatus(ctx, id, models.StatusCancelled, reason)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cancelled, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toAppointmentResponse(cancelled), nil
}

// Providers

func (s *Service) ListProviders(ctx context.Context) ([]*api.ProviderResponse, error) {
	const op = "service.ListProviders"

	providers, err := s.store.ListProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.ProviderResponse, 0, len(providers))
	for i := range providers {
		result = append(result, toProviderResponse(&providers[i]))
	}

	return result, nil
}

func (s *Service) GetProvider(ctx context.Context, id string) (*api.ProviderResponse, error) {
	const op = "service.GetProvider"

	provider, err := s.store.GetProvider(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toProviderResponse(provider), nil
}

// Availability

// ListBookableSlots enumerates the "HH:MM" start times the provider's weekly
// schedule nominally allows on the given date. Existing bookings are not
// subtracted; callers wanting truly free slots cross-reference the
// appointment list, and creation enforces the overlap rule regardless.
func (s *Service) ListBookableSlots(ctx context.Context, providerID, dateStr string) ([]string, error) {
	const op = "service.ListBookableSlots"

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid date: %w", op, response.ErrBadRequest)
	}

	profile, err := s.store.GetProviderProfile(ctx, providerID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slots, err := s.store.GetProviderAvailability(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return schedule.BookableStarts(slots, date, profile.AppointmentDuration), nil
}

// ReplaceAvailability rewrites the provider's weekly schedule wholesale.
// Slots must have start < end on the same day; overnight windows are rejected
// here instead of silently generating nothing later.
func (s *Service) ReplaceAvailability(ctx context.Context, providerID string, req *api.SetAvailabilityRequest) ([]*api.AvailabilitySlotResponse, error) {
	const op = "service.ReplaceAvailability"

	slots := make([]models.AvailabilitySlot, 0, len(req.Slots))

	for _, slot := range req.Slots {
		if slot.DayOfWeek < 0 || slot.DayOfWeek > 6 {
			return nil, fmt.Errorf("%s: day_of_week must be 0..6: %w", op, response.ErrBadRequest)
		}

		start, err := schedule.ParseClock(slot.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid start_time: %w", op, response.ErrBadRequest)
		}

		end, err := schedule.ParseClock(slot.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid end_time: %w", op, response.ErrBadRequest)
		}

		if start >= end {
			return nil, fmt.Errorf("%s: start_time must be before end_time: %w", op, response.ErrBadRequest)
		}

		slots = append(slots, models.AvailabilitySlot{
			ProviderID: providerID,
			DayOfWeek:  slot.DayOfWeek,
			StartTime:  slot.StartTime,
			EndTime:    slot.EndTime,
			IsActive:   true,
		})
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := s.store.ReplaceAvailabilityTx(ctx, tx, providerID, slots); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	stored, err := s.store.GetProviderAvailability(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.AvailabilitySlotResponse, 0, len(stored))
	for _, slot := range stored {
		result = append(result, &api.AvailabilitySlotResponse{
			ID:        slot.ID,
			DayOfWeek: slot.DayOfWeek,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			IsActive:  slot.IsActive,
		})
	}

	return result, nil
}

// isParticipant is the whole authorization rule: the acting user must be the
// appointment's provider or its patient.
func isParticipant(a *models.Appointment, userID string) bool {
	return a.ProviderID == userID || a.PatientID == userID
}

func toAppointmentResponse(a *models.Appointment) *api.AppointmentResponse {
	return &api.AppointmentResponse{
		ID:                 a.ID,
		ProviderID:         a.ProviderID,
		PatientID:          a.PatientID,
		StartTime:          a.Start,
		EndTime:            a.End,
		Status:             string(a.Status),
		Notes:              a.Notes,
		CancellationReason: a.CancellationReason,
	}
}

func toProviderResponse(p *models.Provider) *api.ProviderResponse {
	resp := &api.ProviderResponse{
		ID:    p.ID,
		Name:  p.Name,
		Email: p.Email,
	}

	if p.Profile != nil {
		resp.Profile = &api.ProviderProfileResponse{
			Specialty:           p.Profile.Specialty,
			Bio:                 p.Profile.Bio,
			LicenseNumber:       p.Profile.LicenseNumber,
			AppointmentDuration: p.Profile.AppointmentDuration,
		}
	}

	for _, slot := range p.Slots {
		resp.Slots = append(resp.Slots, api.AvailabilitySlotResponse{
			ID:        slot.ID,
			DayOfWeek: slot.DayOfWeek,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			IsActive:  slot.IsActive,
		})
	}

	return resp
}
