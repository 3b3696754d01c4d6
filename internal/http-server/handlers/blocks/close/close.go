package close

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"pickup-service/api"
	"pickup-service/pkg/response"
	"pickup-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type BlockCloser interface {
	CloseBlock(ctx context.Context, id string) (*api.BlockResponse, error)
}

type Response struct {
	response.Response
	Block api.BlockResponse `json:"block,omitempty"`
}

func New(log *slog.Logger, closer BlockCloser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.close.New"

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

		block, err := closer.CloseBlock(r.Context(), id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if err != nil {
			log.Error("Failed to close block", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to close block"))
			return
		}

		log.Info("Block closed", slog.String("block_id", block.ID))
		render.JSON(w, r, Response{Block: *block})
	}
}
