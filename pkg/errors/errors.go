package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness. Details, when
// set, carries a structured payload serialised alongside code and message.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// Scheduling core taxonomy.
	ErrTeacherConflict      = New("CONFLICT_TEACHER", http.StatusConflict, "teacher is already scheduled for another lesson at this time")
	ErrRoomConflict         = New("CONFLICT_ROOM", http.StatusConflict, "room is already booked for another lesson at this time")
	ErrCohortConflict       = New("CONFLICT_COHORT", http.StatusConflict, "cohort already has a lesson scheduled at this time")
	ErrInvalidTimeRange     = New("INVALID_TIME_RANGE", http.StatusBadRequest, "lesson time range is invalid or outside the allowed duration")
	ErrInfeasibleAssignment = New("INFEASIBLE_ASSIGNMENT", http.StatusUnprocessableEntity, "lesson assignment is inactive or inconsistently linked")
	ErrSolutionIncomplete   = New("SOLUTION_INCOMPLETE", http.StatusConflict, "solver result still has hard violations or unassigned lessons")
	ErrJobNotReady          = New("JOB_NOT_READY", http.StatusAccepted, "solver job is still running")
	ErrTimetableNotEditable = New("TIMETABLE_NOT_EDITABLE", http.StatusConflict, "timetable status does not allow this operation")
	ErrAssignmentReferenced = New("ASSIGNMENT_REFERENCED", http.StatusConflict, "lesson assignment is referenced by scheduled lessons")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// WithDetails returns a copy of the error carrying a structured payload.
func (e *Error) WithDetails(details interface{}) *Error {
	clone := Clone(e, "")
	clone.Details = details
	return clone
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
