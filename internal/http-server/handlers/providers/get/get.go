package get

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

type ProviderGetter interface {
	GetProvider(ctx context.Context, id string) (*api.ProviderResponse, error)
	ListProviders(ctx context.Context) ([]*api.ProviderResponse, error)
}

type Response struct {
	response.Response
	Providers []api.ProviderResponse `json:"providers,omitempty"`
	Provider  *api.ProviderResponse  `json:"provider,omitempty"`
}

func New(log *slog.Logger, getter ProviderGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.providers.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		if id != "" {
			provider, err := getter.GetProvider(r.Context(), id)

			if errors.Is(err, response.ErrNotFound) {
				log.Error("provider not found")
				w.WriteHeader(http.StatusNotFound)
				render.JSON(w, r, response.Error(string(response.NOT_FOUND), "provider not found"))
				return
			}

			if err != nil {
				log.Error("Failed to get provider", sl.Err(err))
				w.WriteHeader(http.StatusInternalServerError)
				render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get provider"))
				return
			}

			log.Info("Provider retrieved", slog.String("provider_id", provider.ID))

			render.JSON(w, r, Response{
				Provider: provider,
			})
			return
		}

		providers, err := getter.ListProviders(r.Context())
		if err != nil {
			log.Error("Failed to list providers", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list providers"))
			return
		}

		log.Info("Providers retrieved", slog.Int("count", len(providers)))

		result := make([]api.ProviderResponse, len(providers))
		for i, p := range providers {
			result[i] = *p
		}

		render.JSON(w, r, Response{
			Providers: result,
		})
	}
}
