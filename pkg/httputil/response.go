package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/observability"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// SuccessResponse is the body of every successful API response
type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// FailureResponse is the body of every failed API response
type FailureResponse struct {
	Status string      `json:"status"`
	Error  FailureBody `json:"error"`
}

// FailureBody classifies a failure
type FailureBody struct {
	Kind      apperr.Kind `json:"kind"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id,omitempty"`
}

// PageMeta accompanies list results
type PageMeta struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// ListData wraps a page of items
type ListData struct {
	Items interface{} `json:"items"`
	Page  PageMeta    `json:"page"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 success envelope
func WriteSuccess(w http.ResponseWriter, message string, data interface{}) {
	_ = WriteJSON(w, http.StatusOK, SuccessResponse{Status: StatusSuccess, Message: message, Data: data})
}

// WriteCreated writes a 201 success envelope
func WriteCreated(w http.ResponseWriter, message string, data interface{}) {
	_ = WriteJSON(w, http.StatusCreated, SuccessResponse{Status: StatusSuccess, Message: message, Data: data})
}

// StatusFor maps a failure kind to its HTTP status
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindParameterMissing, apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteFailure writes the failure envelope for err. Unclassified errors are
// logged and reported as ACTION_FAILED without their detail.
func WriteFailure(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)

	if status >= http.StatusInternalServerError {
		observability.FromContext(r.Context()).WithError(err).Error("request failed")
	}

	_ = WriteJSON(w, status, FailureResponse{
		Status: StatusFailure,
		Error: FailureBody{
			Kind:      kind,
			Message:   apperr.MessageOf(err),
			RequestID: observability.GetRequestID(r.Context()),
		},
	})
}
