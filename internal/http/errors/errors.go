// Package errors traduce los errores del dominio a respuestas HTTP.
// El detalle interno se loguea; al cliente solo llegan mensajes genéricos.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/caishen/internal/auth"
	"github.com/dropDatabas3/caishen/internal/observability/logger"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`

	// Solo para AUTH_PROVIDER_MISMATCH.
	CurrentProvider string `json:"current_provider,omitempty"`
	FailedProvider  string `json:"failed_provider,omitempty"`
}

// FromError convierte cualquier error en un AppError. Los *auth.Error se
// mapean por Kind; el resto es un 500 genérico.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	var ae *auth.Error
	if stderrors.As(err, &ae) {
		return FromAuth(ae)
	}
	return ErrInternalServerError.WithCause(err)
}

// FromAuth mapea un Kind a status y mensaje. Solo los kinds pensados para el
// cliente (mismatch, conflicto, validación) conservan el Detail.
func FromAuth(ae *auth.Error) *AppError {
	switch ae.Kind {
	case auth.KindUnauthorized:
		return ErrUnauthorized.WithCause(ae)
	case auth.KindProviderMismatch:
		return ErrProviderMismatch.WithDetail(ae.Detail).WithCause(ae)
	case auth.KindConflict:
		if ae.Detail != "" {
			return ErrConflict.WithDetail(ae.Detail).WithCause(ae)
		}
		return ErrConflict.WithCause(ae)
	case auth.KindNotFound:
		return ErrNotFound.WithCause(ae)
	case auth.KindInvalidInput:
		return ErrBadRequest.WithDetail(ae.Detail).WithCause(ae)
	case auth.KindDiscoveryDocument, auth.KindProviderConnection:
		return ErrBadGateway.WithCause(ae)
	default:
		// UnknownProvider, CacheUnavailable, DatabaseUnavailable, Internal
		return ErrInternalServerError.WithCause(ae)
	}
}

// WriteError loguea el error una vez (con op/actor/detail/reason si es de
// dominio) y escribe la respuesta JSON.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := FromError(err)
	logError(r.Context(), appErr)

	resp := errorResponse{Code: appErr.Code, Message: appErr.Message, Detail: appErr.Detail}
	var ae *auth.Error
	if stderrors.As(appErr.Err, &ae) && ae.Kind == auth.KindProviderMismatch {
		resp.CurrentProvider = ae.CurrentProvider.String()
		resp.FailedProvider = ae.FailedProvider.String()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

func logError(ctx context.Context, appErr *AppError) {
	log := logger.From(ctx).With(logger.Layer("http"), logger.Status(appErr.HTTPStatus), logger.String("code", appErr.Code))

	var ae *auth.Error
	if stderrors.As(appErr.Err, &ae) {
		log = log.With(
			logger.Op(ae.Op),
			logger.Kind(ae.Kind.String()),
			logger.Actor(ae.Actor),
			logger.String("detail", ae.Detail),
			logger.Reason(ae.Reason),
		)
	}
	if appErr.Err != nil {
		log = log.With(logger.Err(appErr.Err))
	}

	if appErr.HTTPStatus >= 500 {
		log.Error("request failed")
		return
	}
	log.Warn("request rejected")
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
