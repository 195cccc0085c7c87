package api_v1

import (
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"
)

const ERROR_DOMAIN string = "humanflow"

const CODE_VALIDATION_REQUIRED string = "validation.required"
const CODE_VALIDATION_INVALID string = "validation.invalid"
const CODE_NO_LIVE_POINTER string = "validation.no_live_pointer"
const CODE_FORBIDDEN string = "auth.forbidden"
const CODE_GRAPH_MALFORMED string = "graph.malformed"
const CODE_GRAPH_NOT_FOUND string = "graph.not_found"
const CODE_GRAPH_GUARD string = "graph.guard"
const CODE_INFRA_STORAGE string = "infra.storage"
const CODE_INFRA_CONFLICT string = "infra.conflict"
const CODE_INFRA_QUEUE string = "infra.queue"

// ErrorPayload is the body reported to the actor whose command failed.
type ErrorPayload struct {
	Detail string `json:"detail"`
	Where  string `json:"where"`
	Code   string `json:"code"`
}

type PayloadError interface {
	error
	Payload() ErrorPayload
	GRPCStatus() *status.Status
}

var _ PayloadError = GraphError{}
var _ PayloadError = ValidationError{}
var _ PayloadError = RefResolutionError{}
var _ PayloadError = AuthorizationError{}
var _ PayloadError = InfrastructureError{}

func localized(st *status.Status, p ErrorPayload) *status.Status {
	msg := &errdetails.LocalizedMessage{
		Locale:  "en-US",
		Message: p.Detail,
	}
	std, err := st.WithDetails(msg)
	if err != nil {
		return st
	}
	return std
}

func fieldViolation(c codes.Code, p ErrorPayload) *status.Status {
	st := status.New(c, p.Detail)
	br := &errdetails.BadRequest{
		FieldViolations: []*errdetails.BadRequest_FieldViolation{
			{Field: p.Where, Description: p.Detail},
		},
	}
	info := &errdetails.ErrorInfo{Reason: p.Code, Domain: ERROR_DOMAIN}
	std, err := st.WithDetails(br, info)
	if err != nil {
		return st
	}
	return std
}

func errorInfo(c codes.Code, p ErrorPayload) *status.Status {
	st := status.New(c, p.Detail)
	info := &errdetails.ErrorInfo{
		Reason:   p.Code,
		Domain:   ERROR_DOMAIN,
		Metadata: map[string]string{"where": p.Where},
	}
	std, err := st.WithDetails(info)
	if err != nil {
		return st
	}
	return std
}

// GraphError reports a missing or malformed process definition, or a gateway
// whose guards cannot pick a successor.
type GraphError struct {
	ErrorPayload
}

func NewGraphError(code string, where string, format string, args ...any) GraphError {
	return GraphError{ErrorPayload{Detail: fmt.Sprintf(format, args...), Where: where, Code: code}}
}

func (e GraphError) Payload() ErrorPayload {
	return e.ErrorPayload
}

func (e GraphError) GRPCStatus() *status.Status {
	if e.Code == CODE_GRAPH_NOT_FOUND {
		return errorInfo(codes.NotFound, e.ErrorPayload)
	}
	return errorInfo(codes.FailedPrecondition, e.ErrorPayload)
}

func (e GraphError) Error() string {
	return fmt.Sprintf("graph error %s: %s", e.Code, e.Detail)
}

// ValidationError reports one offending input of a submission.
type ValidationError struct {
	ErrorPayload
}

func NewValidationError(code string, where string, format string, args ...any) ValidationError {
	return ValidationError{ErrorPayload{Detail: fmt.Sprintf(format, args...), Where: where, Code: code}}
}

// Required is the error for an absent required input.
func Required(where string, name string) ValidationError {
	return NewValidationError(CODE_VALIDATION_REQUIRED, where, "'%s' is required", name)
}

// Invalid is the error for a malformed value.
func Invalid(where string, format string, args ...any) ValidationError {
	return NewValidationError(CODE_VALIDATION_INVALID, where, format, args...)
}

func (e ValidationError) Payload() ErrorPayload {
	return e.ErrorPayload
}

func (e ValidationError) GRPCStatus() *status.Status {
	return fieldViolation(codes.InvalidArgument, e.ErrorPayload)
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error %s at %s: %s", e.Code, e.Where, e.Detail)
}

// At returns a copy of the error reported at where.
func (e ValidationError) At(where string) ValidationError {
	e.Where = where
	return e
}

// RefResolutionError reports a ref that does not name exactly one leaf.
type RefResolutionError struct {
	ErrorPayload
	Ref string `json:"-"`
}

func NewRefResolutionError(ref string, where string, format string, args ...any) RefResolutionError {
	return RefResolutionError{
		ErrorPayload: ErrorPayload{Detail: fmt.Sprintf(format, args...), Where: where, Code: CODE_VALIDATION_INVALID},
		Ref:          ref,
	}
}

func (e RefResolutionError) Payload() ErrorPayload {
	return e.ErrorPayload
}

func (e RefResolutionError) GRPCStatus() *status.Status {
	return fieldViolation(codes.InvalidArgument, e.ErrorPayload)
}

func (e RefResolutionError) Error() string {
	return fmt.Sprintf("ref %s at %s: %s", e.Ref, e.Where, e.Detail)
}

// AuthorizationError reports an actor that may not act on a pointer, or a
// pointer that is no longer live.
type AuthorizationError struct {
	ErrorPayload
}

func Forbidden(where string, format string, args ...any) AuthorizationError {
	return AuthorizationError{ErrorPayload{Detail: fmt.Sprintf(format, args...), Where: where, Code: CODE_FORBIDDEN}}
}

func NoLivePointer(where string, pointerId string) AuthorizationError {
	return AuthorizationError{ErrorPayload{
		Detail: fmt.Sprintf("pointer %s is not live", pointerId),
		Where:  where,
		Code:   CODE_NO_LIVE_POINTER,
	}}
}

func (e AuthorizationError) Payload() ErrorPayload {
	return e.ErrorPayload
}

func (e AuthorizationError) GRPCStatus() *status.Status {
	if e.Code == CODE_NO_LIVE_POINTER {
		return errorInfo(codes.FailedPrecondition, e.ErrorPayload)
	}
	return errorInfo(codes.PermissionDenied, e.ErrorPayload)
}

func (e AuthorizationError) Error() string {
	return fmt.Sprintf("authorization error %s: %s", e.Code, e.Detail)
}

// InfrastructureError wraps a store or queue failure. Commands failing with it
// are requeued.
type InfrastructureError struct {
	ErrorPayload
	Cause error `json:"-"`
}

func NewInfrastructureError(code string, cause error) InfrastructureError {
	detail := "infrastructure failure"
	if cause != nil {
		detail = cause.Error()
	}
	return InfrastructureError{ErrorPayload: ErrorPayload{Detail: detail, Code: code}, Cause: cause}
}

func (e InfrastructureError) Payload() ErrorPayload {
	return e.ErrorPayload
}

func (e InfrastructureError) GRPCStatus() *status.Status {
	if e.Code == CODE_INFRA_CONFLICT {
		return localized(status.New(codes.Aborted, e.Detail), e.ErrorPayload)
	}
	return localized(status.New(codes.Unavailable, e.Detail), e.ErrorPayload)
}

func (e InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure error %s: %s", e.Code, e.Detail)
}

func (e InfrastructureError) Unwrap() error {
	return e.Cause
}

// PayloadOf extracts the reportable payload of err when err carries one.
func PayloadOf(err error) (ErrorPayload, bool) {
	var pe PayloadError
	if errors.As(err, &pe) {
		return pe.Payload(), true
	}
	return ErrorPayload{}, false
}

// IsTerminal tells whether a command failing with err must not be retried.
func IsTerminal(err error) bool {
	var ge GraphError
	var ve ValidationError
	var re RefResolutionError
	var ae AuthorizationError
	return errors.As(err, &ge) || errors.As(err, &ve) || errors.As(err, &re) || errors.As(err, &ae)
}

func IsRetryable(err error) bool {
	if err == nil || IsTerminal(err) {
		return false
	}
	return true
}
