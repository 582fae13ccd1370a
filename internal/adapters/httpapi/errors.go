package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/nullable"

	"github.com/Huaoe/ElurcFleet/internal/app/challenge"
	"github.com/Huaoe/ElurcFleet/internal/app/verification"
)

const (
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeMembershipRequired = "MEMBERSHIP_REQUIRED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeValidation         = "VALIDATION_ERROR"
	CodeInternal           = "INTERNAL_ERROR"

	// retryAfterSeconds is sent with 503 responses caused by store outages.
	retryAfterSeconds = "60"
)

type ErrorBody struct {
	Code          string                            `json:"code"`
	Message       string                            `json:"message"`
	Details       nullable.Nullable[map[string]any] `json:"details,omitempty"`
	RequestID     nullable.Nullable[string]         `json:"requestId,omitempty"`
	CorrelationID nullable.Nullable[string]         `json:"correlationId,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]any) {
	var er ErrorResponse
	er.Error.Code = code
	er.Error.Message = message
	if details != nil {
		er.Error.Details = nullable.NewNullableWithValue(details)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		er.Error.RequestID = nullable.NewNullableWithValue(rid)
	}
	if cid, ok := verification.CorrelationIDFromContext(r.Context()); ok {
		er.Error.CorrelationID = nullable.NewNullableWithValue(cid)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	writeJSON(w, status, er)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusForCode maps verification and challenge outcome codes to HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case verification.CodeInvalidSignature,
		verification.CodeNFTNotFound,
		verification.CodeMembershipRevoked,
		challenge.CodeMalformed,
		challenge.CodeExpired,
		challenge.CodeReplayed:
		return http.StatusForbidden
	case verification.CodeConfigMissing:
		return http.StatusServiceUnavailable
	case verification.CodeDuplicateWallet:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
