package cancel

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
	"github.com/go-chi/render"
)

type Canceller interface {
	Cancel(ctx context.Context, ref models.EventRef, partyID string) (*api.BookingResponse, error)
}

type Request struct {
	api.BookingCancelRequest
}

type Response struct {
	response.Response
	Booking api.BookingResponse `json:"booking,omitempty"`
}

func New(log *slog.Logger, canceller Canceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.cancel.New"

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

		if req.PartyID == "" {
			log.Error("party_id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "party_id is required"))
			return
		}

		kind, err := models.ParseEventKind(req.EventKind)
		if err != nil || req.EventID == "" {
			log.Error("invalid event reference")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "event_kind and event_id are required"))
			return
		}

		ref := models.EventRef{Kind: kind, ID: req.EventID}

		booking, err := canceller.Cancel(r.Context(), ref, req.PartyID)

		if errors.Is(err, response.ErrAlreadyCancelled) {
			log.Error("booking already cancelled")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.ALREADY_CANCELLED), "booking is already cancelled"))
			return
		}

		if errors.Is(err, response.ErrCancelNotAllowed) {
			log.Error("cancellation not allowed")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.CANCELLATION_NOT_ALLOWED), "cancellation is not allowed for this event type"))
			return
		}

		if errors.Is(err, response.ErrDeadlinePassed) {
			log.Error("deadline passed")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.DEADLINE_PASSED), "the cancellation deadline has passed"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("resource is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "resource is locked"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if errors.Is(err, response.ErrRetryExhausted) {
			log.Error("retries exhausted", sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error(string(response.RETRY_EXHAUSTED), "temporary failure, try again"))
			return
		}

		if err != nil {
			log.Error("Failed to cancel booking", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to cancel booking"))
			return
		}

		log.Info("Booking cancelled", slog.Any("booking", booking))
		responseOK(w, r, booking)
	}
}

func responseOK(w http.ResponseWriter, r *http.Request, booking *api.BookingResponse) {
	render.JSON(w, r, Response{
		Booking: *booking,
	})
}
