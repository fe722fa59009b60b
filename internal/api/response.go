package api

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/sammcj/md-server/internal/orchestrator"
	"github.com/sammcj/md-server/internal/taxonomy"
)

// ConvertResponse is the body of a successful conversion
type ConvertResponse struct {
	Success   bool                  `json:"success"`
	Markdown  string                `json:"markdown"`
	Metadata  orchestrator.Metadata `json:"metadata"`
	RequestID string                `json:"request_id"`
}

// ErrorBody describes a failure using the error taxonomy
type ErrorBody struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, logger *logrus.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Debug("Failed to write response body")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *logrus.Logger, err *taxonomy.Error) {
	requestID := requestIDFrom(r.Context())

	logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"code":       err.Code(),
		"status":     err.HTTPStatus(),
	}).Info(err.Message)

	writeJSON(w, logger, err.HTTPStatus(), ErrorResponse{
		Success: false,
		Error: ErrorBody{
			Code:        err.Code(),
			Message:     err.Message,
			Suggestions: err.Suggestions,
			Details:     err.Details,
		},
		RequestID: requestID,
	})
}
