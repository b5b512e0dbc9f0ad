// Package respond writes JSON bodies and error payloads for HTTP handlers.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"pdfedit/internal/apperr"
)

type errorBody struct {
	Error string      `json:"error"`
	Type  apperr.Type `json:"type"`
}

func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("Failed to encode response")
	}
}

// Error reports err as {"error", "type"}. Errors that are not an AppError are
// logged and hidden behind a generic message.
func Error(w http.ResponseWriter, logger *logrus.Logger, r *http.Request, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.NewInternalError("internal server error", err)
	}

	entry := logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": appErr.StatusCode,
	}).WithError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	message := appErr.Message
	if appErr.Details != "" {
		message += ": " + appErr.Details
	}
	JSON(w, appErr.StatusCode, errorBody{Error: message, Type: appErr.Type})
}
