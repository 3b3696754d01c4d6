package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"pickup-service/api"
	"pickup-service/internal/models"
	"pickup-service/pkg/response"
	"pickup-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type EventGetter interface {
	GetEvent(ctx context.Context, ref models.EventRef, partyID string) (*api.EventResponse, error)
}

type Response struct {
	response.Response
	Event *api.EventResponse `json:"event,omitempty"`
}

func New(log *slog.Logger, getter EventGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.events.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		kind, err := models.ParseEventKind(chi.URLParam(r, "kind"))
		id := chi.URLParam(r, "id")
		if err != nil || id == "" {
			log.Error("invalid event reference")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid event reference"))
			return
		}

		partyID := r.Header.Get("X-Party-ID")
		if partyID == "" {
			log.Error("party id header is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "X-Party-ID header is required"))
			return
		}

		event, err := getter.GetEvent(r.Context(), models.EventRef{Kind: kind, ID: id}, partyID)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if err != nil {
			log.Error("Failed to get event", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get event"))
			return
		}

		log.Info("Event retrieved", slog.String("event", event.EventKind+":"+event.EventID))
		render.JSON(w, r, Response{Event: event})
	}
}
