package response

import "errors"

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error Codes
type ErrCode string

var (
	FAILED_REQUEST           ErrCode = "REQUEST_FAILED"
	BAD_REQUEST              ErrCode = "FAILED_TO_DECODE"
	NOT_FOUND                ErrCode = "NOT_FOUND"
	LOCKED                   ErrCode = "LOCKED"
	CONFLICT                 ErrCode = "CONFLICT"
	SLOT_NOT_AVAILABLE       ErrCode = "SLOT_NOT_AVAILABLE"
	SLOT_FULL                ErrCode = "SLOT_FULL"
	NOT_ELIGIBLE             ErrCode = "NOT_ELIGIBLE"
	ALREADY_BOOKED           ErrCode = "ALREADY_BOOKED"
	ALREADY_CANCELLED        ErrCode = "ALREADY_CANCELLED"
	CANCELLATION_NOT_ALLOWED ErrCode = "CANCELLATION_NOT_ALLOWED"
	RESCHEDULE_NOT_ALLOWED   ErrCode = "RESCHEDULE_NOT_ALLOWED"
	DEADLINE_PASSED          ErrCode = "DEADLINE_PASSED"
	RETRY_EXHAUSTED          ErrCode = "RETRY_EXHAUSTED"
)

// Eligibility denial reasons, carried in the error message next to
// NOT_ELIGIBLE so clients can tell a scope miss from an empty calendar.
const (
	ReasonNotLinkedToGroup = "NOT_LINKED_TO_GROUP"
	ReasonNoOpenBlocks     = "NO_OPEN_BLOCKS"
)

var (
	ErrBadRequest            = errors.New("bad request")
	ErrNotFound              = errors.New("resource not found")
	ErrLocked                = errors.New("resource is locked")
	ErrConflict              = errors.New("conflict")
	ErrSlotNotAvailable      = errors.New("slot is not available")
	ErrSlotFull              = errors.New("slot has no remaining capacity")
	ErrNotEligible           = errors.New("party is not eligible for this event")
	ErrAlreadyBooked         = errors.New("party already holds a confirmed booking for this event")
	ErrAlreadyCancelled      = errors.New("booking is already cancelled")
	ErrCancelNotAllowed      = errors.New("cancellation is not allowed for this event type")
	ErrRescheduleNotAllowed  = errors.New("reschedule is not allowed for this event type")
	ErrDeadlinePassed        = errors.New("the policy deadline for this operation has passed")
	ErrRetryExhausted        = errors.New("operation failed after retries")
)

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}
