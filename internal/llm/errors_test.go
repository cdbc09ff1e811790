package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/ollama/ollama/api"
)

func TestCategorizeStatusProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	valid := map[string]bool{
		CategoryAuthFailure:        true,
		CategoryModelNotFound:      true,
		CategoryRateLimit:          true,
		CategoryFormatIncompatible: true,
		CategoryServerError:        true,
		CategoryEndpointNotFound:   true,
		CategoryUnknown:            true,
	}

	// Property: 401 and 403 are authentication failures
	properties.Property("401 and 403 are authentication failures", prop.ForAll(
		func(status int, body string) bool {
			return CategorizeStatus(status, body) == CategoryAuthFailure
		},
		gen.OneConstOf(http.StatusUnauthorized, http.StatusForbidden),
		gen.AnyString(),
	))

	// Property: 404 mentioning a model is model_not_found
	properties.Property("404 mentioning model is model_not_found", prop.ForAll(
		func(prefix, suffix string) bool {
			return CategorizeStatus(http.StatusNotFound, prefix+"Model"+suffix) == CategoryModelNotFound
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	// Property: 5xx are server errors
	properties.Property("5xx are server errors", prop.ForAll(
		func(status int, body string) bool {
			return CategorizeStatus(status, body) == CategoryServerError
		},
		gen.IntRange(500, 599),
		gen.AnyString(),
	))

	// Property: every status maps to a known category
	properties.Property("every status maps to a known category", prop.ForAll(
		func(status int, body string) bool {
			return valid[CategorizeStatus(status, body)]
		},
		gen.IntRange(100, 599),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestCategorizeStatus(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   string
	}{
		{http.StatusNotFound, "page not found", CategoryEndpointNotFound},
		{http.StatusTooManyRequests, "", CategoryRateLimit},
		{http.StatusOK, "", CategoryFormatIncompatible},
		{http.StatusBadRequest, "bad", CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			if got := CategorizeStatus(tt.status, tt.body); got != tt.want {
				t.Errorf("CategorizeStatus(%d) = %s, want %s", tt.status, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	ref := ModelRef{Provider: "ollama", Model: "llama3"}

	tests := []struct {
		name       string
		err        error
		want       string
		wantStatus int
	}{
		{"ollama status error", api.StatusError{StatusCode: 429, Status: "429 Too Many Requests", ErrorMessage: "slow down"}, CategoryRateLimit, 429},
		{"wrapped status error", fmt.Errorf("chat: %w", api.StatusError{StatusCode: 502, ErrorMessage: "bad gateway"}), CategoryServerError, 502},
		{"deadline", context.DeadlineExceeded, CategoryNetworkError, 0},
		{"refused", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), CategoryNetworkError, 0},
		{"model missing message", errors.New(`model "llama9" not found, try pulling it first`), CategoryModelNotFound, 0},
		{"other", errors.New("boom"), CategoryUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(ref, tt.err)
			if got.Category != tt.want || got.StatusCode != tt.wantStatus {
				t.Errorf("classify() = %s/%d, want %s/%d", got.Category, got.StatusCode, tt.want, tt.wantStatus)
			}
			if !errors.Is(got, tt.err) {
				t.Error("InvocationError does not wrap the cause")
			}
			if got.Provider != "ollama" || got.Model != "llama3" {
				t.Errorf("provider/model = %s/%s", got.Provider, got.Model)
			}
		})
	}

	t.Run("existing invocation error is kept", func(t *testing.T) {
		in := &InvocationError{Category: CategoryFormatIncompatible}
		got := classify(ref, fmt.Errorf("wrap: %w", in))
		if got != in || got.Provider != "ollama" {
			t.Errorf("classify() = %+v", got)
		}
	})
}

func TestInvocationErrorMessage(t *testing.T) {
	err := &InvocationError{Category: CategoryAuthFailure, StatusCode: 401, Provider: "openai", Model: "gpt-4o", Message: "bad key"}
	if got := err.Error(); got != "openai/gpt-4o: authentication_failure (HTTP 401): bad key" {
		t.Errorf("Error() = %q", got)
	}
	if !strings.Contains(err.UserMessage(), "API key") {
		t.Errorf("UserMessage() = %q", err.UserMessage())
	}
	if GetUserMessage("nope") != GetUserMessage(CategoryUnknown) {
		t.Error("unknown category should fall back to the generic message")
	}
}
