// Package llm sends a rendered prompt to the configured provider and decodes
// the structured JSON answer.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"maestro/config/models"
	"maestro/internal/providers"
)

// DefaultTimeout bounds one invocation when Options.Timeout is zero.
const DefaultTimeout = 2 * time.Minute

// ModelRef identifies the provider model to call and how to reach it.
type ModelRef struct {
	Provider providers.Name
	Model    string
	APIKey   string
	BaseURL  string
	Label    string
}

// RefFromConfig builds the reference for a registry entry, filling in the
// provider's default base URL.
func RefFromConfig(c models.ModelConfig) ModelRef {
	ref := ModelRef{
		Provider: c.Provider,
		Model:    c.ModelID,
		APIKey:   c.APIKey,
		BaseURL:  c.BaseURL,
		Label:    c.Label,
	}
	if p, err := providers.Get(c.Provider); err == nil {
		if ref.BaseURL == "" {
			ref.BaseURL = p.DefaultBaseURL()
		}
		ref.BaseURL = p.NormalizeConfig(ref.BaseURL)
	}
	return ref
}

func (r ModelRef) String() string {
	if r.Label != "" {
		return fmt.Sprintf("%s (%s/%s)", r.Label, r.Provider, r.Model)
	}
	return fmt.Sprintf("%s/%s", r.Provider, r.Model)
}

// Request is one structured generation.
type Request struct {
	// Name identifies the flow in logs.
	Name   string
	System string
	Prompt string
	// Schema describes the JSON object the model must return.
	Schema *Schema
}

// Invoker is the capability the flows depend on.
type Invoker interface {
	Invoke(ctx context.Context, ref ModelRef, req Request, out any) error
}

// Client is one provider connection able to return raw JSON text.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Options tune every client a Dispatcher creates.
type Options struct {
	Timeout     time.Duration
	Temperature *float64
	HTTPClient  *http.Client
	MaxRetries  int
}

// Factory creates a Client for ref.
type Factory func(ctx context.Context, ref ModelRef, opts Options) (Client, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[providers.Name]Factory)
)

// RegisterFactory registers the client factory of a provider.
func RegisterFactory(name providers.Name, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

func factoryFor(name providers.Name) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Dispatcher implements Invoker by routing each call to the provider's client.
type Dispatcher struct {
	opts      Options
	log       *logrus.Entry
	overrides map[providers.Name]Factory
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts Options, log *logrus.Entry) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.WithField("component", "llm")
	}
	return &Dispatcher{opts: opts, log: log, overrides: make(map[providers.Name]Factory)}
}

// WithFactory replaces the factory of one provider for this dispatcher only.
func (d *Dispatcher) WithFactory(name providers.Name, f Factory) *Dispatcher {
	d.overrides[name] = f
	return d
}

// Invoke runs req against ref and decodes the JSON answer into out.
// Every failure is an *InvocationError.
func (d *Dispatcher) Invoke(ctx context.Context, ref ModelRef, req Request, out any) error {
	missing, err := providers.Missing(ref.Provider, ref.Model, ref.APIKey, ref.BaseURL)
	if err != nil || len(missing) > 0 {
		msg := fmt.Sprintf("missing %v", missing)
		if err != nil {
			msg = err.Error()
		}
		return &InvocationError{Category: CategoryConfigError, Provider: string(ref.Provider), Model: ref.Model, Message: msg, Err: err}
	}

	factory, ok := d.overrides[ref.Provider]
	if !ok {
		factory, ok = factoryFor(ref.Provider)
	}
	if !ok {
		return &InvocationError{Category: CategoryConfigError, Provider: string(ref.Provider), Model: ref.Model, Message: "no client for provider"}
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	log := d.log.WithFields(logrus.Fields{"flow": req.Name, "provider": ref.Provider, "model": ref.Model})
	start := time.Now()

	client, err := factory(ctx, ref, d.opts)
	if err != nil {
		ie := classify(ref, err)
		log.WithError(ie).Warn("failed to create client")
		return ie
	}

	text, err := client.Generate(ctx, req)
	if err != nil {
		ie := classify(ref, err)
		log.WithField("category", ie.Category).WithError(err).Warn("invocation failed")
		return ie
	}

	if err := decode(ref, req.Schema, text, out); err != nil {
		log.WithError(err).Warn("unusable model output")
		return err
	}
	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Debug("invocation complete")
	return nil
}

// Ping sends a minimal structured request and reports the round trip time.
func (d *Dispatcher) Ping(ctx context.Context, ref ModelRef) (time.Duration, error) {
	var out struct {
		OK bool `json:"ok"`
	}
	start := time.Now()
	err := d.Invoke(ctx, ref, Request{
		Name:   "ping",
		Prompt: `Reply with the JSON object {"ok": true} and nothing else.`,
		Schema: Object(map[string]*Schema{"ok": Boolean("always true")}, "ok"),
	}, &out)
	return time.Since(start), err
}

// systemWithSchema appends the schema to the system prompt for providers
// that only support a generic JSON mode.
func systemWithSchema(req Request) string {
	var b strings.Builder
	b.WriteString(req.System)
	if req.Schema != nil {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Respond only with a JSON object matching this JSON schema:\n")
		b.Write(req.Schema.JSON())
	}
	return b.String()
}
