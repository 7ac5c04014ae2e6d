package list

import (
	"context"
	"log/slog"
	"net/http"

	"clinic-scheduler/api"
	"clinic-scheduler/internal/models"
	"clinic-scheduler/pkg/response"
	"clinic-scheduler/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type AppointmentLister interface {
	ListAppointments(ctx context.Context, userID string, role models.Role) ([]*api.AppointmentResponse, error)
}

type Response struct {
	response.Response
	Appointments []api.AppointmentResponse `json:"appointments"`
}

func New(log *slog.Logger, lister AppointmentLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.list.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			log.Error("user id header is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "X-User-ID is required"))
			return
		}

		role := models.Role(r.Header.Get("X-User-Role"))
		if role != models.RoleProvider && role != models.RolePatient {
			log.Error("invalid role", slog.String("role", string(role)))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "X-User-Role must be provider or patient"))
			return
		}

		appointments, err := lister.ListAppointments(r.Context(), userID, role)
		if err != nil {
			log.Error("Failed to list appointments", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list appointments"))
			return
		}

		log.Info("Appointments retrieved", slog.Int("count", len(appointments)))

		result := make([]api.AppointmentResponse, len(appointments))
		for i, a := range appointments {
			result[i] = *a
		}

		render.JSON(w, r, Response{
			Appointments: result,
		})
	}
}
