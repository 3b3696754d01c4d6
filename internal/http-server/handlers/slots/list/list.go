package list

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

type SlotLister interface {
	ListSlots(ctx context.Context, ref models.EventRef) ([]*api.BlockResponse, error)
}

type Response struct {
	response.Response
	Blocks []api.BlockResponse `json:"blocks"`
}

func New(log *slog.Logger, lister SlotLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.list.New"

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

		blocks, err := lister.ListSlots(r.Context(), models.EventRef{Kind: kind, ID: id})

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if err != nil {
			log.Error("Failed to list slots", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list slots"))
			return
		}

		log.Info("Slots retrieved", slog.Int("blocks", len(blocks)))

		// empty calendar is a normal state, not an error
		blocksResponse := make([]api.BlockResponse, len(blocks))
		for i, b := range blocks {
			blocksResponse[i] = *b
		}
		render.JSON(w, r, Response{Blocks: blocksResponse})
	}
}
