package api_v1

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
)

func TestClassification(t *testing.T) {
	cases := map[string]struct {
		err       error
		terminal  bool
		retryable bool
		code      codes.Code
	}{
		"graph":      {NewGraphError(CODE_GRAPH_GUARD, "gateway", "no edge matched"), true, false, codes.FailedPrecondition},
		"validation": {Required("input.0.name", "name"), true, false, codes.InvalidArgument},
		"ref":        {NewRefResolutionError("a.b.c", "inputs.0.ref", "node a not found"), true, false, codes.InvalidArgument},
		"auth":       {Forbidden("request.user", "user juan may not act"), true, false, codes.PermissionDenied},
		"infra":      {NewInfrastructureError(CODE_INFRA_STORAGE, errors.New("down")), false, true, codes.Unavailable},
		"conflict":   {NewInfrastructureError(CODE_INFRA_CONFLICT, errors.New("version moved")), false, true, codes.Aborted},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			wrapped := fmt.Errorf("processing: %w", c.err)
			require.Equal(t, c.terminal, IsTerminal(wrapped))
			require.Equal(t, c.retryable, IsRetryable(wrapped))
			pe, ok := c.err.(PayloadError)
			require.True(t, ok)
			require.Equal(t, c.code, pe.GRPCStatus().Code())
			_, ok = PayloadOf(wrapped)
			require.True(t, ok)
		})
	}
}

func TestValidationPayload(t *testing.T) {
	err := Required("request.body.form_array.1.phone", "phone")
	p, ok := PayloadOf(err)
	require.True(t, ok)
	require.Equal(t, ErrorPayload{
		Detail: "'phone' is required",
		Where:  "request.body.form_array.1.phone",
		Code:   CODE_VALIDATION_REQUIRED,
	}, p)

	st := err.GRPCStatus()
	var found bool
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok {
			require.Equal(t, "request.body.form_array.1.phone", br.FieldViolations[0].Field)
			found = true
		}
	}
	require.True(t, found)

	moved := Invalid("x", "bad").At("input.2.datetime")
	require.Equal(t, "input.2.datetime", moved.Where)
}

func TestInfrastructureUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewInfrastructureError(CODE_INFRA_QUEUE, cause)
	require.ErrorIs(t, err, cause)
	require.False(t, IsRetryable(nil))
}
