package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/nexbase/crudgate/pipeline"
	"github.com/nexbase/crudgate/utils"
)

// HandleServiceError maps pipeline errors to HTTP responses. Descriptors
// carry their own stable status code and structured details; anything else
// is an internal error.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var desc *pipeline.Descriptor
	if !errors.As(err, &desc) {
		logger.Error("unhandled error", zap.Error(err))
		if werr := utils.WriteInternalServerError(w, "An unexpected error occurred"); werr != nil {
			logger.Error("failed to write internal error response", zap.Error(werr))
		}
		return
	}

	status := desc.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		logger.Error("action failed",
			zap.String("kind", string(desc.Kind)),
			zap.Error(err))
	} else {
		logger.Debug("action rejected",
			zap.String("kind", string(desc.Kind)),
			zap.String("message", desc.Message))
	}

	details := make(map[string]any, len(desc.Details))
	for k, v := range desc.Details {
		details[k] = v
	}

	response := utils.ErrorResponse{
		Error:   string(desc.Kind),
		Message: desc.Message,
		Details: details,
	}
	if werr := utils.WriteJSON(w, status, response); werr != nil {
		logger.Error("failed to write error response", zap.Error(werr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if werr := utils.WriteBadRequest(w, "Validation failed", details); werr != nil {
			logger.Error("failed to write validation error response", zap.Error(werr))
		}
		return
	}

	if werr := utils.WriteBadRequest(w, err.Error(), nil); werr != nil {
		logger.Error("failed to write validation error response", zap.Error(werr))
	}
}
