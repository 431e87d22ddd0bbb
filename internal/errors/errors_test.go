package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/mutaician/p2p-coin-flip/internal/errors"
)

func TestError_Is(t *testing.T) {
	err := errors.Wrap(errors.ErrSessionFull, "session is already full: id=%s", "ABCD1234")
	wrapped := fmt.Errorf("join: %w", err)

	assert.ErrorIs(t, wrapped, errors.ErrSessionFull)
	assert.NotErrorIs(t, wrapped, errors.ErrSessionNotJoinable)
	assert.ErrorIs(t, wrapped, errors.New(errors.CodeAlreadyExists), "target without reason matches by code")
}

func TestError_Kind(t *testing.T) {
	tests := map[string]struct {
		err  *errors.Error
		kind errors.Kind
		http int
	}{
		"validation": {
			err:  errors.Validation("bet must be at least %d", 1),
			kind: errors.KindValidation,
			http: http.StatusBadRequest,
		},
		"protocol not found": {
			err:  errors.ErrSessionNotFound,
			kind: errors.KindProtocol,
			http: http.StatusNotFound,
		},
		"protocol not ready": {
			err:  errors.ErrSessionNotReady,
			kind: errors.KindProtocol,
			http: http.StatusConflict,
		},
		"store": {
			err:  errors.Store(stderrors.New("connection refused")),
			kind: errors.KindStore,
			http: http.StatusServiceUnavailable,
		},
		"data": {
			err:  errors.Data(stderrors.New("bad status")),
			kind: errors.KindData,
			http: http.StatusUnprocessableEntity,
		},
		"internal": {
			err:  errors.Internal(stderrors.New("boom")),
			kind: errors.KindInternal,
			http: http.StatusInternalServerError,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.http, tt.err.HTTPStatusCode())
		})
	}
}

func TestConvert(t *testing.T) {
	e := errors.Convert(fmt.Errorf("outer: %w", errors.ErrJoinConflict))
	require.Equal(t, errors.ReasonJoinConflict, e.Reason)
	assert.Equal(t, codes.Aborted, e.GRPCStatus().Code())

	plain := errors.Convert(stderrors.New("plain"))
	assert.Equal(t, errors.CodeInternal, plain.Code)
}
