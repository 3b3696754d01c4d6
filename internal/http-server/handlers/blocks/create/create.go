package create

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"pickup-service/api"
	"pickup-service/pkg/response"
	"pickup-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type BlockCreator interface {
	CreateBlock(ctx context.Context, req *api.BlockCreateRequest) (*api.BlockResponse, error)
}

type Request struct {
	api.BlockCreateRequest
}

type Response struct {
	response.Response
	Block api.BlockResponse `json:"block,omitempty"`
}

func New(log *slog.Logger, creator BlockCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.create.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		log.Info("Request body decoded", slog.Any("request", req))

		if req.TemplateID == "" {
			log.Error("template_id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "template_id is required"))
			return
		}

		block, err := creator.CreateBlock(r.Context(), &req.BlockCreateRequest)

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("invalid block definition", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid block definition"))
			return
		}

		if errors.Is(err, response.ErrConflict) {
			log.Error("template is closed for new blocks")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.CONFLICT), "template is closed for new blocks"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if err != nil {
			log.Error("Failed to create block", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to create block"))
			return
		}

		log.Info("Block created", slog.String("block_id", block.ID), slog.Int("slots", len(block.Slots)))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{Block: *block})
	}
}
