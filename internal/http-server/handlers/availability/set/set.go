package set

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"clinic-scheduler/api"
	"clinic-scheduler/pkg/response"
	"clinic-scheduler/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type AvailabilityReplacer interface {
	ReplaceAvailability(ctx context.Context, providerID string, req *api.SetAvailabilityRequest) ([]*api.AvailabilitySlotResponse, error)
}

type Request struct {
	api.SetAvailabilityRequest
}

type Response struct {
	response.Response
	Slots []api.AvailabilitySlotResponse `json:"slots"`
}

func New(log *slog.Logger, replacer AvailabilityReplacer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.set.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "id is required"))
			return
		}

		userID := r.Header.Get("X-User-ID")
		if userID != id {
			log.Error("user may only replace own availability")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "access denied"))
			return
		}

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		log.Info("Request body decoded", slog.Int("slots", len(req.Slots)))

		slots, err := replacer.ReplaceAvailability(r.Context(), id, &req.SetAvailabilityRequest)

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("invalid slot", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "slots must have day_of_week 0..6 and start_time before end_time"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("provider not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "provider not found"))
			return
		}

		if err != nil {
			log.Error("Failed to replace availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to replace availability"))
			return
		}

		log.Info("Availability replaced", slog.Int("count", len(slots)))

		result := make([]api.AvailabilitySlotResponse, len(slots))
		for i, s := range slots {
			result[i] = *s
		}

		render.JSON(w, r, Response{
			Slots: result,
		})
	}
}
