package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"clinic-scheduler/api"
	"clinic-scheduler/internal/models"
	"clinic-scheduler/internal/service"
	"clinic-scheduler/pkg/response"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	testifymock.Mock
}

func (m *MockStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(*sql.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ListScheduledForProviderTx(ctx context.Context, tx *sql.Tx, providerID string) ([]models.Appointment, error) {
	args := m.Called(ctx, tx, providerID)
	if a, ok := args.Get(0).([]models.Appointment); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) InsertAppointmentTx(ctx context.Context, tx *sql.Tx, appointment *models.Appointment) (string, error) {
	args := m.Called(ctx, tx, appointment)
	return args.String(0), args.Error(1)
}

func (m *MockStore) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	args := m.Called(ctx, id)
	if a, ok := args.Get(0).(*models.Appointment); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus, reason *string) error {
	args := m.Called(ctx, id, status, reason)
	return args.Error(0)
}

func (m *MockStore) ListAppointmentsForUser(ctx context.Context, userID string, role models.Role) ([]models.Appointment, error) {
	args := m.Called(ctx, userID, role)
	if a, ok := args.Get(0).([]models.Appointment); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ListProviders(ctx context.Context) ([]models.Provider, error) {
	args := m.Called(ctx)
	if p, ok := args.Get(0).([]models.Provider); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*models.Provider); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) GetProviderProfile(ctx context.Context, providerID string) (*models.ProviderProfile, error) {
	args := m.Called(ctx, providerID)
	if p, ok := args.Get(0).(*models.ProviderProfile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) GetProviderAvailability(ctx context.Context, providerID string) ([]models.AvailabilitySlot, error) {
	args := m.Called(ctx, providerID)
	if s, ok := args.Get(0).([]models.AvailabilitySlot); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ReplaceAvailabilityTx(ctx context.Context, tx *sql.Tx, providerID string, slots []models.AvailabilitySlot) error {
	args := m.Called(ctx, tx, providerID, slots)
	return args.Error(0)
}

type fakeLocker struct {
	denied bool
	keys   []string
}

func (f *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return !f.denied, nil
}

func (f *fakeLocker) Unlock(ctx context.Context, key string) error {
	return nil
}

func newTx(t *testing.T) (*sql.Tx, sqlmock.Sqlmock) {
	t.Helper()

	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	dbMock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	return tx, dbMock
}

const (
	providerID = "provider-1"
	patientID  = "patient-1"
)

func rfc(hour, min int) string {
	return time.Date(2026, time.March, 2, hour, min, 0, 0, time.UTC).Format(time.RFC3339)
}

func at(hour, min int) time.Time {
	return time.Date(2026, time.March, 2, hour, min, 0, 0, time.UTC)
}

func TestCreateAppointment(t *testing.T) {
	t.Run("success on empty calendar", func(t *testing.T) {
		tx, dbMock := newTx(t)
		dbMock.ExpectCommit()

		store := new(MockStore)
		locker := &fakeLocker{}
		s := service.NewService(store, locker)

		created := &models.Appointment{
			ID:         "appt-1",
			ProviderID: providerID,
			PatientID:  patientID,
			Start:      at(9, 0),
			End:        at(9, 30),
			Status:     models.StatusScheduled,
		}

		store.On("BeginTx", testifymock.Anything).Return(tx, nil)
		store.On("ListScheduledForProviderTx", testifymock.Anything, tx, providerID).Return([]models.Appointment{}, nil)
		store.On("InsertAppointmentTx", testifymock.Anything, tx, testifymock.Anything).Return("appt-1", nil)
		store.On("GetAppointment", testifymock.Anything, "appt-1").Return(created, nil)

		got, err := s.CreateAppointment(context.Background(), patientID, &api.CreateAppointmentRequest{
			ProviderID: providerID,
			StartTime:  rfc(9, 0),
			EndTime:    rfc(9, 30),
		})

		require.NoError(t, err)
		assert.Equal(t, "appt-1", got.ID)
		assert.Equal(t, string(models.StatusScheduled), got.Status)
		assert.Equal(t, []string{"provider:" + providerID}, locker.keys)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("overlap fails with conflict and inserts nothing", func(t *testing.T) {
		tx, dbMock := newTx(t)
		dbMock.ExpectRollback()

		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{})

		existing := []models.Appointment{
			{ID: "appt-1", ProviderID: providerID, Start: at(9, 0), End: at(9, 30), Status: models.StatusScheduled},
		}

		store.On("BeginTx", testifymock.Anything).Return(tx, nil)
		store.On("ListScheduledForProviderTx", testifymock.Anything, tx, providerID).Return(existing, nil)

		_, err := s.CreateAppointment(context.Background(), patientID, &api.CreateAppointmentRequest{
			ProviderID: providerID,
			StartTime:  rfc(9, 15),
			EndTime:    rfc(9, 45),
		})

		require.ErrorIs(t, err, response.ErrConflict)
		store.AssertNotCalled(t, "InsertAppointmentTx", testifymock.Anything, testifymock.Anything, testifymock.Anything)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("abutting interval succeeds", func(t *testing.T) {
		tx, dbMock := newTx(t)
		dbMock.ExpectCommit()

		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{})

		existing := []models.Appointment{
			{ID: "appt-1", ProviderID: providerID, Start: at(9, 0), End: at(9, 30), Status: models.StatusScheduled},
		}
		created := &models.Appointment{
			ID: "appt-2", ProviderID: providerID, PatientID: patientID,
			Start: at(9, 30), End: at(10, 0), Status: models.StatusScheduled,
		}

		store.On("BeginTx", testifymock.Anything).Return(tx, nil)
		store.On("ListScheduledForProviderTx", testifymock.Anything, tx, providerID).Return(existing, nil)
		store.On("InsertAppointmentTx", testifymock.Anything, tx, testifymock.Anything).Return("appt-2", nil)
		store.On("GetAppointment", testifymock.Anything, "appt-2").Return(created, nil)

		got, err := s.CreateAppointment(context.Background(), patientID, &api.CreateAppointmentRequest{
			ProviderID: providerID,
			StartTime:  rfc(9, 30),
			EndTime:    rfc(10, 0),
		})

		require.NoError(t, err)
		assert.Equal(t, "appt-2", got.ID)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("cancelled appointments do not block", func(t *testing.T) {
		tx, dbMock := newTx(t)
		dbMock.ExpectCommit()

		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{})

		existing := []models.Appointment{
			{ID: "appt-1", ProviderID: providerID, Start: at(9, 0), End: at(9, 30), Status: models.StatusCancelled},
		}
		created := &models.Appointment{
			ID: "appt-2", ProviderID: providerID, PatientID: patientID,
			Start: at(9, 0), End: at(9, 30), Status: models.StatusScheduled,
		}

		store.On("BeginTx", testifymock.Anything).Return(tx, nil)
		store.On("ListScheduledForProviderTx", testifymock.Anything, tx, providerID).Return(existing, nil)
		store.On("InsertAppointmentTx", testifymock.Anything, tx, testifymock.Anything).Return("appt-2", nil)
		store.On("GetAppointment", testifymock.Anything, "appt-2").Return(created, nil)

		_, err := s.CreateAppointment(context.Background(), patientID, &api.CreateAppointmentRequest{
			ProviderID: providerID,
			StartTime:  rfc(9, 0),
			EndTime:    rfc(9, 30),
		})

		require.NoError(t, err)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("locked provider is rejected", func(t *testing.T) {
		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{denied: true})

		_, err := s.CreateAppointment(context.Background(), patientID, &api.CreateAppointmentRequest{
			ProviderID: providerID,
			StartTime:  rfc(9, 0),
			EndTime:    rfc(9, 30),
		})

		require.ErrorIs(t, err, response.ErrLocked)
		store.AssertNotCalled(t, "BeginTx", testifymock.Anything)
	})

	t.Run("end before start is rejected", func(t *testing.T) {
		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{})

		_, err := s.CreateAppointment(context.Background(), patientID, &api.CreateAppointmentRequest{
			ProviderID: providerID,
			StartTime:  rfc(10, 0),
			EndTime:    rfc(9, 0),
		})

		require.ErrorIs(t, err, response.ErrBadRequest)
		store.AssertNotCalled(t, "BeginTx", testifymock.Anything)
	})
}

func TestCancelAppointment(t *testing.T) {
	scheduled := func() *models.Appointment {
		return &models.Appointment{
			ID:         "appt-1",
			ProviderID: providerID,
			PatientID:  patientID,
			Start:      at(9, 0),
			End:        at(9, 30),
			Status:     models.StatusScheduled,
		}
	}

	reason := "schedule conflict"

	for _, actor := range []struct {
		name   string
		userID string
		role   models.Role
	}{
		{"by provider", providerID, models.RoleProvider},
		{"by patient", patientID, models.RolePatient},
	} {
		t.Run(actor.name, func(t *testing.T) {
			store := new(MockStore)
			s := service.NewService(store, &fakeLocker{})

			cancelled := scheduled()
			cancelled.Status = models.StatusCancelled
			cancelled.CancellationReason = &reason

			store.On("GetAppointment", testifymock.Anything, "appt-1").Return(scheduled(), nil).Once()
			store.On("UpdateAppointmentStatus", testifymock.Anything, "appt-1", models.StatusCancelled, &reason).Return(nil)
			store.On("GetAppointment", testifymock.Anything, "appt-1").Return(cancelled, nil).Once()

			got, err := s.CancelAppointment(context.Background(), "appt-1", actor.userID, actor.role, &reason)

			require.NoError(t, err)
			assert.Equal(t, string(models.StatusCancelled), got.Status)
			require.NotNil(t, got.CancellationReason)
			assert.Equal(t, reason, *got.CancellationReason)
		})
	}

	t.Run("third user is forbidden", func(t *testing.T) {
		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{})

		store.On("GetAppointment", testifymock.Anything, "appt-1").Return(scheduled(), nil)

		_, err := s.CancelAppointment(context.Background(), "appt-1", "someone-else", models.RolePatient, nil)

		require.ErrorIs(t, err, response.ErrForbidden)
		store.AssertNotCalled(t, "UpdateAppointmentStatus", testifymock.Anything, testifymock.Anything, testifymock.Anything, testifymock.Anything)
	})

	t.Run("second cancel fails with conflict", func(t *testing.T) {
		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{})

		already := scheduled()
		already.Status = models.StatusCancelled

		store.On("GetAppointment", testifymock.Anything, "appt-1").Return(already, nil)

		_, err := s.CancelAppointment(context.Background(), "appt-1", patientID, models.RolePatient, nil)

		require.ErrorIs(t, err, response.ErrConflict)
		store.AssertNotCalled(t, "UpdateAppointmentStatus", testifymock.Anything, testifymock.Anything, testifymock.Anything, testifymock.Anything)
	})

	t.Run("missing appointment", func(t *testing.T) {
		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{})

		store.On("GetAppointment", testifymock.Anything, "nope").Return(nil, response.ErrNotFound)

		_, err := s.CancelAppointment(context.Background(), "nope", patientID, models.RolePatient, nil)

		require.ErrorIs(t, err, response.ErrNotFound)
	})
}

func TestGetAppointment(t *testing.T) {
	appt := &models.Appointment{
		ID:         "appt-1",
		ProviderID: providerID,
		PatientID:  patientID,
		Start:      at(9, 0),
		End:        at(9, 30),
		Status:     models.StatusScheduled,
	}

	t.Run("participant can view", func(t *testing.T) {
		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{})

		store.On("GetAppointment", testifymock.Anything, "appt-1").Return(appt, nil)

		got, err := s.GetAppointment(context.Background(), "appt-1", patientID, models.RolePatient)

		require.NoError(t, err)
		assert.Equal(t, "appt-1", got.ID)
	})

	t.Run("non participant is forbidden", func(t *testing.T) {
		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{})

		store.On("GetAppointment", testifymock.Anything, "appt-1").Return(appt, nil)

		_, err := s.GetAppointment(context.Background(), "appt-1", "intruder", models.RolePatient)

		require.ErrorIs(t, err, response.ErrForbidden)
	})
}

func TestListAppointments(t *testing.T) {
	store := new(MockStore)
	s := service.NewService(store, &fakeLocker{})

	appointments := []models.Appointment{
		{ID: "appt-1", ProviderID: providerID, PatientID: patientID, Start: at(9, 0), End: at(9, 30), Status: models.StatusScheduled},
		{ID: "appt-2", ProviderID: providerID, PatientID: "patient-2", Start: at(10, 0), End: at(10, 30), Status: models.StatusScheduled},
	}

	store.On("ListAppointmentsForUser", testifymock.Anything, providerID, models.RoleProvider).Return(appointments, nil)

	got, err := s.ListAppointments(context.Background(), providerID, models.RoleProvider)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "appt-1", got[0].ID)
	assert.Equal(t, "appt-2", got[1].ID)
}

func TestListBookableSlots(t *testing.T) {
	t.Run("full monday schedule", func(t *testing.T) {
		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{})

		store.On("GetProviderProfile", testifymock.Anything, providerID).
			Return(&models.ProviderProfile{UserID: providerID, AppointmentDuration: 30}, nil)
		store.On("GetProviderAvailability", testifymock.Anything, providerID).
			Return([]models.AvailabilitySlot{
				{ProviderID: providerID, DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", IsActive: true},
			}, nil)

		got, err := s.ListBookableSlots(context.Background(), providerID, "2026-03-02")

		require.NoError(t, err)
		require.Len(t, got, 16)
		assert.Equal(t, "09:00", got[0])
		assert.Equal(t, "16:30", got[15])
	})

	t.Run("unknown provider", func(t *testing.T) {
		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{})

		store.On("GetProviderProfile", testifymock.Anything, "ghost").Return(nil, response.ErrNotFound)

		_, err := s.ListBookableSlots(context.Background(), "ghost", "2026-03-02")

		require.ErrorIs(t, err, response.ErrNotFound)
	})

	t.Run("malformed date", func(t *testing.T) {
		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{})

		_, err := s.ListBookableSlots(context.Background(), providerID, "02.03.2026")

		require.ErrorIs(t, err, response.ErrBadRequest)
	})
}

func TestReplaceAvailability(t *testing.T) {
	t.Run("overnight slot is rejected", func(t *testing.T) {
		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{})

		_, err := s.ReplaceAvailability(context.Background(), providerID, &api.SetAvailabilityRequest{
			Slots: []api.AvailabilitySlotRequest{
				{DayOfWeek: 1, StartTime: "20:00", EndTime: "04:00"},
			},
		})

		require.ErrorIs(t, err, response.ErrBadRequest)
		store.AssertNotCalled(t, "BeginTx", testifymock.Anything)
	})

	t.Run("invalid day of week is rejected", func(t *testing.T) {
		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{})

		_, err := s.ReplaceAvailability(context.Background(), providerID, &api.SetAvailabilityRequest{
			Slots: []api.AvailabilitySlotRequest{
				{DayOfWeek: 7, StartTime: "09:00", EndTime: "17:00"},
			},
		})

		require.ErrorIs(t, err, response.ErrBadRequest)
	})

	t.Run("valid schedule is replaced wholesale", func(t *testing.T) {
		tx, dbMock := newTx(t)
		dbMock.ExpectCommit()

		store := new(MockStore)
		s := service.NewService(store, &fakeLocker{})

		stored := []models.AvailabilitySlot{
			{ID: "slot-1", ProviderID: providerID, DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", IsActive: true},
		}

		store.On("BeginTx", testifymock.Anything).Return(tx, nil)
		store.On("ReplaceAvailabilityTx", testifymock.Anything, tx, providerID, testifymock.Anything).Return(nil)
		store.On("GetProviderAvailability", testifymock.Anything, providerID).Return(stored, nil)

		got, err := s.ReplaceAvailability(context.Background(), providerID, &api.SetAvailabilityRequest{
			Slots: []api.AvailabilitySlotRequest{
				{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00"},
			},
		})

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "slot-1", got[0].ID)
		assert.True(t, got[0].IsActive)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}
