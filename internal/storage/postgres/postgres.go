package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"clinic-scheduler/internal/models"
	"clinic-scheduler/pkg/response"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func NewWithDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Storage) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// #### appointments ####

// ListScheduledForProviderTx reads the provider's SCHEDULED appointments
// inside the booking transaction. FOR UPDATE keeps a concurrent create on the
// same provider from reading a stale set before this one commits.
func (s *Storage) ListScheduledForProviderTx(ctx context.Context, tx *sql.Tx, providerID string) ([]models.Appointment, error) {
	const op = "storage.postgres.ListScheduledForProviderTx"

	rows, err := tx.QueryContext(ctx,
		`SELECT id, provider_id, patient_id, start_time, end_time, status, notes, cancellation_reason
		FROM appointments
		WHERE provider_id=$1 AND status=$2
		FOR UPDATE`,
		providerID, string(models.StatusScheduled),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var appointments []models.Appointment

	for rows.Next() {
		var a models.Appointment
		err := rows.Scan(&a.ID, &a.ProviderID, &a.PatientID, &a.Start, &a.End, &a.Status, &a.Notes, &a.CancellationReason)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		appointments = append(appointments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return appointments, nil
}

func (s *Storage) InsertAppointmentTx(ctx context.Context, tx *sql.Tx, appointment *models.Appointment) (string, error) {
	const op = "storage.postgres.InsertAppointmentTx"

	id := uuid.New().String()

	_, err := tx.ExecContext(ctx,
		`INSERT INTO appointments
		(id, provider_id, patient_id, start_time, end_time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id,
		appointment.ProviderID,
		appointment.PatientID,
		appointment.Start,
		appointment.End,
		string(appointment.Status),
		appointment.Notes,
	)
	if err != nil {
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23503" {
			return "", fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	const op = "storage.postgres.GetAppointment"

	var a models.Appointment

	err := s.db.QueryRowContext(ctx,
		`SELECT id, provider_id, patient_id, start_time, end_time, status, notes, cancellation_reason
		FROM appointments WHERE id=$1`, id).
		Scan(&a.ID, &a.ProviderID, &a.PatientID, &a.Start, &a.End, &a.Status, &a.Notes, &a.CancellationReason)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &a, nil
}

func (s *Storage) UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus, reason *string) error {
	const op = "storage.postgres.UpdateAppointmentStatus"

	res, err := s.db.ExecContext(ctx,
		`UPDATE appointments
		SET status=$1, cancellation_reason=COALESCE($2, cancellation_reason)
		WHERE id=$3`,
		string(status), reason, id,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

// ListAppointmentsForUser scopes by role: providers see appointments where
// they are the provider, patients where they are the patient. Ascending by
// start time is the single list contract.
func (s *Storage) ListAppointmentsForUser(ctx context.Context, userID string, role models.Role) ([]models.Appointment, error) {
	const op = "storage.postgres.ListAppointmentsForUser"

	column := "patient_id"
	if role == models.RoleProvider {
		column = "provider_id"
	}

	query := fmt.Sprintf(
		`SELECT id, provider_id, patient_id, start_time, end_time, status, notes, cancellation_reason
		FROM appointments
		WHERE %s=$1
		ORDER BY start_time ASC`, column)

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var appointments []models.Appointment

	for rows.Next() {
		var a models.Appointment
		err := rows.Scan(&a.ID, &a.ProviderID, &a.PatientID, &a.Start, &a.End, &a.Status, &a.Notes, &a.CancellationReason)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		appointments = append(appointments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return appointments, nil
}

// #### providers ####

func (s *Storage) ListProviders(ctx context.Context) ([]models.Provider, error) {
	const op = "storage.postgres.ListProviders"

	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.name, u.email, p.specialty, p.bio, p.license_number, p.appointment_duration
		FROM users u
		JOIN provider_profiles p ON p.user_id = u.id
		WHERE u.role=$1
		ORDER BY u.name ASC`,
		string(models.RoleProvider),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var providers []models.Provider

	for rows.Next() {
		var p models.Provider
		var profile models.ProviderProfile

		err := rows.Scan(&p.ID, &p.Name, &p.Email, &profile.Specialty, &profile.Bio, &profile.LicenseNumber, &profile.AppointmentDuration)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		profile.UserID = p.ID
		p.Profile = &profile

		providers = append(providers, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return providers, nil
}

func (s *Storage) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	const op = "storage.postgres.GetProvider"

	var p models.Provider
	var profile models.ProviderProfile

	err := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.name, u.email, p.specialty, p.bio, p.license_number, p.appointment_duration
		FROM users u
		JOIN provider_profiles p ON p.user_id = u.id
		WHERE u.id=$1 AND u.role=$2`,
		id, string(models.RoleProvider)).
		Scan(&p.ID, &p.Name, &p.Email, &profile.Specialty, &profile.Bio, &profile.LicenseNumber, &profile.AppointmentDuration)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profile.UserID = p.ID
	p.Profile = &profile

	slots, err := s.GetProviderAvailability(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p.Slots = slots

	return &p, nil
}

func (s *Storage) GetProviderProfile(ctx context.Context, providerID string) (*models.ProviderProfile, error) {
	const op = "storage.postgres.GetProviderProfile"

	var profile models.ProviderProfile

	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, specialty, bio, license_number, appointment_duration
		FROM provider_profiles WHERE user_id=$1`, providerID).
		Scan(&profile.UserID, &profile.Specialty, &profile.Bio, &profile.LicenseNumber, &profile.AppointmentDuration)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &profile, nil
}

// #### availability ####

func (s *Storage) GetProviderAvailability(ctx context.Context, providerID string) ([]models.AvailabilitySlot, error) {
	const op = "storage.postgres.GetProviderAvailability"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, provider_id, day_of_week, start_time, end_time, is_active
		FROM availability_slots
		WHERE provider_id=$1 AND is_active=TRUE
		ORDER BY day_of_week ASC, start_time ASC`,
		providerID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var slots []models.AvailabilitySlot

	for rows.Next() {
		var slot models.AvailabilitySlot
		err := rows.Scan(&slot.ID, &slot.ProviderID, &slot.DayOfWeek, &slot.StartTime, &slot.EndTime, &slot.IsActive)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slots, nil
}

// ReplaceAvailabilityTx replaces the provider's weekly schedule wholesale.
// The profile-management flow always rewrites the full set.
func (s *Storage) ReplaceAvailabilityTx(ctx context.Context, tx *sql.Tx, providerID string, slots []models.AvailabilitySlot) error {
	const op = "storage.postgres.ReplaceAvailabilityTx"

	_, err := tx.ExecContext(ctx, `DELETE FROM availability_slots WHERE provider_id=$1`, providerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, slot := range slots {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO availability_slots
			(id, provider_id, day_of_week, start_time, end_time, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New().String(),
			providerID,
			slot.DayOfWeek,
			slot.StartTime,
			slot.EndTime,
			true,
		)
		if err != nil {
			sqlErr, ok := err.(*pq.Error)
			if ok && sqlErr.Code == "23503" {
				return fmt.Errorf("%s: %w", op, response.ErrNotFound)
			}

			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}
