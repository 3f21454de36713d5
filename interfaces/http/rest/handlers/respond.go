package handlers

import (
	"errors"
	"io"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"gentree/application/commands/bus"
	"gentree/pkg/common"
	pkgerrors "gentree/pkg/errors"
)

const maxBodyBytes = 1 << 20

// maxImportBytes bounds snapshot uploads and multipart photos.
const maxImportBytes = 32 << 20

// retryAfterSeconds matches the circuit breaker's open-state timeout.
const retryAfterSeconds = "60"

// respondError renders err in the API envelope. AppErrors keep their status
// and code; anything else is logged and hidden behind a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	requestID := chimiddleware.GetReqID(r.Context())

	appErr := pkgerrors.GetAppError(err)
	if appErr == nil {
		if errors.Is(err, bus.ErrHandlerNotFound) {
			logger.Error("No handler for command", zap.Error(err), zap.String("requestID", requestID))
		} else {
			logger.Error("Unhandled error", zap.Error(err), zap.String("requestID", requestID))
		}
		common.RespondError(w, http.StatusInternalServerError, common.StandardErrorCodes.InternalError, "An internal error occurred")
		return
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	code := appErr.Code
	if code == "" {
		code = string(appErr.Type)
	}

	fields := []zap.Field{
		zap.String("errorType", string(appErr.Type)),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("requestID", requestID),
	}
	if appErr.Cause != nil {
		fields = append(fields, zap.Error(appErr.Cause))
	}

	if pkgerrors.IsUnavailable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}

	message := appErr.Message
	if status >= http.StatusInternalServerError {
		logger.Error(appErr.Message, fields...)
		if appErr.Type == pkgerrors.ErrorTypeDatabase || appErr.Type == pkgerrors.ErrorTypeInternal {
			message = "An internal error occurred"
		}
	} else {
		logger.Debug(appErr.Message, fields...)
	}

	common.RespondErrorWithDetails(w, status, code, message, appErr.Details)
}

// decodeBody parses a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := common.ParseJSONBody(w, r, v, maxBodyBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pkgerrors.NewValidationError("request body too large").WithCode(common.StandardErrorCodes.BadRequest)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		return pkgerrors.NewValidationError("invalid request body: " + err.Error()).WithCode(common.StandardErrorCodes.BadRequest)
	}
	return nil
}
