package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dropDatabas3/caishen/internal/auth"
	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestFromAuthStatuses(t *testing.T) {
	cases := map[auth.Kind]int{
		auth.KindUnauthorized:        http.StatusUnauthorized,
		auth.KindProviderMismatch:    http.StatusConflict,
		auth.KindUnknownProvider:     http.StatusInternalServerError,
		auth.KindDiscoveryDocument:   http.StatusBadGateway,
		auth.KindProviderConnection:  http.StatusBadGateway,
		auth.KindCacheUnavailable:    http.StatusInternalServerError,
		auth.KindDatabaseUnavailable: http.StatusInternalServerError,
		auth.KindConflict:            http.StatusConflict,
		auth.KindNotFound:            http.StatusNotFound,
		auth.KindInvalidInput:        http.StatusBadRequest,
		auth.KindInternal:            http.StatusInternalServerError,
	}
	for kind, status := range cases {
		got := FromError(fmt.Errorf("wrapped: %w", &auth.Error{Kind: kind, Op: "x"}))
		require.Equal(t, status, got.HTTPStatus, kind.String())
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteError(rec, req, &auth.Error{
		Kind:   auth.KindUnauthorized,
		Op:     "auth.Authorize",
		Reason: auth.ReasonInvalidToken,
		Detail: "signature mismatch for user 42",
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "User is not authorized", body["message"])
	require.NotContains(t, rec.Body.String(), "user 42")
	require.NotContains(t, rec.Body.String(), auth.ReasonInvalidToken)
}

func TestWriteErrorProviderMismatch(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteError(rec, req, &auth.Error{
		Kind:            auth.KindProviderMismatch,
		CurrentProvider: domain.ProviderLocal,
		FailedProvider:  domain.ProviderGoogle,
		Detail:          "User is already registered with another provider, please use LOCAL provider to log-in",
	})

	require.Equal(t, http.StatusConflict, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "LOCAL", body.CurrentProvider)
	require.Equal(t, "GOOGLE", body.FailedProvider)
	require.Contains(t, body.Detail, "LOCAL provider")
}

func TestFromErrorUnknown(t *testing.T) {
	got := FromError(stderrors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, got.HTTPStatus)
	require.Equal(t, "An error has occurred. Please try again.", got.Message)
}

func TestWriteErrorConflictKeepsDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteError(rec, req, &auth.Error{
		Kind:   auth.KindConflict,
		Op:     "auth.HandleProviderCallback",
		Reason: auth.ReasonConcurrentSignup,
		Detail: "The account changed during log-in, please try again.",
	})

	require.Equal(t, http.StatusConflict, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "CONFLICT", body.Code)
	require.Equal(t, "The account changed during log-in, please try again.", body.Detail)
}
