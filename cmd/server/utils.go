package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lychee-technology/tabula"
	"go.uber.org/zap"
)

// APIResponse is the standard error response format
type APIResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// MessageResponse confirms an operation that has no resource body.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON writes JSON response to http.ResponseWriter
func writeJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) error {
	return writeJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

// writeSuccess writes a success response
func writeSuccess(w http.ResponseWriter, statusCode int, data any) error {
	return writeJSON(w, statusCode, data)
}

// publicMessages overrides the message shown to clients for some error codes.
var publicMessages = map[string]string{
	tabula.ErrCodeDatasetNotFound:   "Dataset not found",
	tabula.ErrCodeDataPointNotFound: "Data point not found",
	tabula.ErrCodeChartNotFound:     "Chart not found",
	tabula.ErrCodeDatasetNameTaken:  "Dataset name already exists",
	tabula.ErrCodeRateLimited:       "Too many requests",
}

// statusFor maps an error category to its HTTP status.
func statusFor(t tabula.ErrorType) int {
	switch t {
	case tabula.ErrorTypeInvalidInput:
		return http.StatusBadRequest
	case tabula.ErrorTypeNotFound:
		return http.StatusNotFound
	case tabula.ErrorTypeConflict:
		return http.StatusConflict
	case tabula.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case tabula.ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeTabulaError maps err onto a status and body. Internal failures are
// logged and answered with a generic message.
func writeTabulaError(w http.ResponseWriter, r *http.Request, err error) {
	var typed *tabula.Error
	if !errors.As(err, &typed) || typed.Type == tabula.ErrorTypeInternal {
		zap.S().Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, APIResponse{
			Success: false,
			Error:   "Internal server error",
			Code:    tabula.ErrCodeInternalError,
		})
		return
	}

	msg := typed.Message
	if override, ok := publicMessages[typed.Code]; ok {
		msg = override
	}
	resp := APIResponse{Success: false, Error: msg, Code: typed.Code}
	if len(typed.Details) > 0 {
		resp.Details = typed.Details
	}
	writeJSON(w, statusFor(typed.Type), resp)
}

// pathUUID reads a UUID path value. A malformed id cannot name an existing
// resource, so it is reported through notFound.
func pathUUID(r *http.Request, name string, notFound func(string) *tabula.Error) (uuid.UUID, error) {
	raw := r.PathValue(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, notFound(raw)
	}
	return id, nil
}

// readJSONBody reads and decodes JSON from request body
func readJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &tabula.Error{
			Type:    tabula.ErrorTypeInvalidInput,
			Code:    tabula.ErrCodeInvalidJSON,
			Message: "Invalid JSON body",
			Cause:   err,
		}
	}
	return nil
}

// parsePagination extracts page and limit from query parameters. Bad values
// are passed as 0 so the manager applies its defaults.
func parsePagination(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return page, limit
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	return time.Duration(getEnvInt(key, int(defaultValue/time.Second))) * time.Second
}
