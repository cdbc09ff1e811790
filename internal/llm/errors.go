package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/ollama/ollama/api"
	openai "github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// Error categories reported by InvocationError.
const (
	CategoryAuthFailure        = "authentication_failure"
	CategoryModelNotFound      = "model_not_found"
	CategoryRateLimit          = "rate_limit"
	CategoryFormatIncompatible = "format_incompatibility"
	CategoryNetworkError       = "network_error"
	CategoryServerError        = "server_error"
	CategoryEndpointNotFound   = "endpoint_not_found"
	CategoryConfigError        = "configuration_error"
	CategoryUnknown            = "unknown_error"
)

var userMessages = map[string]string{
	CategoryAuthFailure:        "Authentication failed. Please check the API key.",
	CategoryModelNotFound:      "Model not found. Please verify the model id.",
	CategoryRateLimit:          "Rate limit exceeded. Please try again later.",
	CategoryFormatIncompatible: "The model did not return the expected JSON structure.",
	CategoryNetworkError:       "Network error: unable to reach the provider.",
	CategoryServerError:        "The provider returned a server error. Please try again later.",
	CategoryEndpointNotFound:   "API endpoint not found. Please verify the base URL.",
	CategoryConfigError:        "The model configuration is incomplete.",
	CategoryUnknown:            "An unknown error occurred.",
}

// InvocationError is the single failure type of Invoke.
type InvocationError struct {
	Category   string
	StatusCode int
	Provider   string
	Model      string
	Message    string
	Err        error
}

func (e *InvocationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s: %s", e.Provider, e.Model, e.Category)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *InvocationError) Unwrap() error { return e.Err }

// UserMessage is a one-line hint suitable for the CLI.
func (e *InvocationError) UserMessage() string {
	return GetUserMessage(e.Category)
}

// GetUserMessage returns the user-friendly message for an error category
func GetUserMessage(category string) string {
	if msg, ok := userMessages[category]; ok {
		return msg
	}
	return userMessages[CategoryUnknown]
}

// CategorizeStatus maps an HTTP status (and body, for 404s) to a category.
// A 200 only reaches here when the payload was unusable.
func CategorizeStatus(statusCode int, body string) string {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return CategoryAuthFailure
	case http.StatusNotFound:
		if strings.Contains(strings.ToLower(body), "model") {
			return CategoryModelNotFound
		}
		return CategoryEndpointNotFound
	case http.StatusTooManyRequests:
		return CategoryRateLimit
	case http.StatusOK:
		return CategoryFormatIncompatible
	default:
		if statusCode >= http.StatusInternalServerError {
			return CategoryServerError
		}
		return CategoryUnknown
	}
}

// classify turns an SDK or transport error into an InvocationError.
func classify(ref ModelRef, err error) *InvocationError {
	var ie *InvocationError
	if errors.As(err, &ie) {
		if ie.Provider == "" {
			ie.Provider = string(ref.Provider)
		}
		if ie.Model == "" {
			ie.Model = ref.Model
		}
		return ie
	}

	out := &InvocationError{
		Category: CategoryUnknown,
		Provider: string(ref.Provider),
		Model:    ref.Model,
		Message:  err.Error(),
		Err:      err,
	}

	if status, body, ok := statusOf(err); ok {
		out.StatusCode = status
		out.Category = CategorizeStatus(status, body)
		if body != "" {
			out.Message = body
		}
		return out
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.As(err, &netErr):
		out.Category = CategoryNetworkError
	default:
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "model") && strings.Contains(msg, "not found") {
			out.Category = CategoryModelNotFound
		} else if strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") {
			out.Category = CategoryNetworkError
		}
	}
	return out
}

// statusOf extracts the HTTP status carried by the provider SDK errors.
func statusOf(err error) (int, string, bool) {
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return oaiErr.StatusCode, oaiErr.Message, true
	}

	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return gErr.Code, gErr.Message, true
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) {
		return gErrPtr.Code, gErrPtr.Message, true
	}

	var oErr api.StatusError
	if errors.As(err, &oErr) {
		return oErr.StatusCode, oErr.ErrorMessage, true
	}
	return 0, "", false
}

func formatError(ref ModelRef, msg string, err error) *InvocationError {
	return &InvocationError{
		Category: CategoryFormatIncompatible,
		Provider: string(ref.Provider),
		Model:    ref.Model,
		Message:  msg,
		Err:      err,
	}
}
