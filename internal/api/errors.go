package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/churn-triage/internal/utils"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func httpStatus(err error) int {
	switch utils.KindOf(err) {
	case utils.ErrValidation, utils.ErrSchema:
		return http.StatusBadRequest
	case utils.ErrNotFound:
		return http.StatusNotFound
	case utils.ErrUnauthorized:
		return http.StatusUnauthorized
	case utils.ErrExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func grpcStatus(err error) error {
	var code codes.Code
	switch utils.KindOf(err) {
	case utils.ErrValidation, utils.ErrSchema:
		code = codes.InvalidArgument
	case utils.ErrNotFound:
		code = codes.NotFound
	case utils.ErrArtifact:
		code = codes.FailedPrecondition
	case utils.ErrExternalService:
		code = codes.Unavailable
	case utils.ErrUnauthorized:
		code = codes.Unauthenticated
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

func message(err error) string {
	var appErr *utils.AppError
	if errors.As(err, &appErr) && appErr.Msg != "" {
		return appErr.Msg
	}
	return err.Error()
}

func kindName(err error) string {
	if kind := utils.KindOf(err); kind != nil {
		return kind.Error()
	}
	return ""
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	writeJSON(w, code, errorBody{Error: message(err), Kind: kindName(err)})
}
