package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	CodeInvalidArgument    = Code(codes.InvalidArgument)
	CodeNotFound           = Code(codes.NotFound)
	CodeAlreadyExists      = Code(codes.AlreadyExists)
	CodeFailedPrecondition = Code(codes.FailedPrecondition)
	CodeAborted            = Code(codes.Aborted)
	CodeUnavailable        = Code(codes.Unavailable)
	CodeDataLoss           = Code(codes.DataLoss)
	CodeInternal           = Code(codes.Internal)
)

var code2http = map[Code]int{
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeAlreadyExists:      http.StatusConflict,
	CodeFailedPrecondition: http.StatusConflict,
	CodeAborted:            http.StatusConflict,
	CodeUnavailable:        http.StatusServiceUnavailable,
	CodeDataLoss:           http.StatusUnprocessableEntity,
	CodeInternal:           http.StatusInternalServerError,
}

// Kind groups codes into the failure classes a caller renders differently.
type Kind string

const (
	KindValidation Kind = "validation"
	KindProtocol   Kind = "protocol"
	KindStore      Kind = "store"
	KindData       Kind = "data"
	KindInternal   Kind = "internal"
)

var code2kind = map[Code]Kind{
	CodeInvalidArgument:    KindValidation,
	CodeNotFound:           KindProtocol,
	CodeAlreadyExists:      KindProtocol,
	CodeFailedPrecondition: KindProtocol,
	CodeAborted:            KindProtocol,
	CodeUnavailable:        KindStore,
	CodeDataLoss:           KindData,
}

// Reasons distinguish protocol failures sharing a code.
const (
	ReasonSessionNotFound       = "SESSION_NOT_FOUND"
	ReasonSessionNotJoinable    = "SESSION_NOT_JOINABLE"
	ReasonSessionFull           = "SESSION_FULL"
	ReasonSessionNotReady       = "SESSION_NOT_READY"
	ReasonSessionNotCancellable = "SESSION_NOT_CANCELLABLE"
	ReasonJoinConflict          = "JOIN_CONFLICT"
	ReasonNoCurrentSession      = "NO_CURRENT_SESSION"
)

// Sentinels for errors.Is. Matching compares Code and Reason only.
var (
	ErrSessionNotFound       = New(CodeNotFound, WithReason(ReasonSessionNotFound))
	ErrSessionNotJoinable    = New(CodeFailedPrecondition, WithReason(ReasonSessionNotJoinable))
	ErrSessionFull           = New(CodeAlreadyExists, WithReason(ReasonSessionFull))
	ErrSessionNotReady       = New(CodeFailedPrecondition, WithReason(ReasonSessionNotReady))
	ErrSessionNotCancellable = New(CodeFailedPrecondition, WithReason(ReasonSessionNotCancellable))
	ErrJoinConflict          = New(CodeAborted, WithReason(ReasonJoinConflict))
	ErrNoCurrentSession      = New(CodeFailedPrecondition, WithReason(ReasonNoCurrentSession))
)

type Error struct {
	Code    Code   `json:"code"`
	Kind    Kind   `json:"kind"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Kind:    kindOf(code),
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if e.Reason != "" {
		s += fmt.Sprintf(", reason: %s", e.Reason)
	}
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is matches another *Error by Code, and by Reason when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Code == e.Code && (t.Reason == "" || t.Reason == e.Reason)
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

// Validation reports bad local input before any store interaction.
func Validation(format string, args ...any) *Error {
	return New(CodeInvalidArgument, WithMessagef(format, args...))
}

// Store wraps a failed store acknowledgement.
func Store(err error) *Error {
	return New(CodeUnavailable, WithCause(err), WithMessagef("store: %v", err))
}

// Data reports a malformed record received from the store.
func Data(err error) *Error {
	return New(CodeDataLoss, WithCause(err), WithMessagef("malformed record: %v", err))
}

func kindOf(c Code) Kind {
	if k, ok := code2kind[c]; ok {
		return k
	}

	return KindInternal
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}

func WithReason(reason string) Option {
	return optionFunc(func(e *Error) {
		e.Reason = reason
	})
}

// Wrap copies a sentinel, keeping its code and reason, with a new message.
func Wrap(sentinel *Error, format string, args ...any) *Error {
	return New(sentinel.Code, WithReason(sentinel.Reason), WithMessagef(format, args...))
}
