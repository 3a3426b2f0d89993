package apiclient

import (
	"encoding/json"
	"net/http"
	"strings"

	"jimpitan/internal/domain"
)

// alreadyUploadedPatterns match the ways the backend has phrased the daily-lock rejection.
// The status code varies between deployments (400, 403, 409), so the body decides.
var alreadyUploadedPatterns = []string{
	"already uploaded",
	"already_uploaded",
	"sudah upload",
	"sudah diupload",
	"sudah di-upload",
	"sudah di upload",
	"sudah melakukan upload",
	"hanya dapat dilakukan sekali",
}

// classify turns a non-2xx response into one of the domain error types.
func classify(status int, raw []byte, cat domain.Category) error {
	msg, code := decodeError(raw)
	if IsAlreadyUploaded(code, msg) {
		return &domain.AlreadyUploadedError{Category: cat, Message: msg}
	}
	switch {
	case status == http.StatusTooManyRequests, status >= 500:
		return &domain.ServerError{StatusCode: status, Message: msg}
	default:
		return &domain.RejectedError{StatusCode: status, Message: msg}
	}
}

// IsAlreadyUploaded reports whether an error code or message describes the daily upload lock.
func IsAlreadyUploaded(code, message string) bool {
	if strings.EqualFold(strings.TrimSpace(code), "ALREADY_UPLOADED") {
		return true
	}
	lower := strings.ToLower(message)
	for _, pattern := range alreadyUploadedPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func decodeError(raw []byte) (message, code string) {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil {
		message = strings.TrimSpace(detail.Error)
		if message == "" {
			message = strings.TrimSpace(detail.Message)
		}
		return message, detail.Code
	}
	return strings.TrimSpace(string(raw)), ""
}
