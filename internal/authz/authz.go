package authz

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
)

// ResourceWorkspace is the resource type the worker checks before executing a claim.
const ResourceWorkspace = "workspace"

// Request describes the action being authorized.
type Request struct {
	ResourceType string
	ResourceID   string
	Operation    string
	Region       string
	Attributes   map[string]any
}

// Decision is the outcome of an authorization check. Filter carries
// constraints the caller should apply when the action is allowed.
type Decision struct {
	Allowed bool
	Filter  map[string]any
	Reason  string
}

// Permit returns an unconditional allow decision with an empty filter.
func Permit() Decision {
	return Decision{Allowed: true, Filter: map[string]any{}}
}

// Deny returns a refusal with the given reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Filter: map[string]any{}, Reason: reason}
}

// Authorizer evaluates requests for one resource type.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) (Decision, error)
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, req Request) (Decision, error)

func (f AuthorizerFunc) Authorize(ctx context.Context, req Request) (Decision, error) {
	return f(ctx, req)
}

// Provider is one entry produced by Registry.Providers.
type Provider struct {
	Token      string
	Custom     bool
	Default    bool
	Authorizer Authorizer
}

// Registry holds service and custom authorizers keyed by resource type.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	service map[string]Authorizer
	custom  map[string]Authorizer
}

// NewRegistry returns an empty registry; every type resolves to the default authorizer.
func NewRegistry() *Registry {
	return &Registry{
		service: make(map[string]Authorizer),
		custom:  make(map[string]Authorizer),
	}
}

// Register installs the service authorizer for a resource type, replacing the default.
func (r *Registry) Register(resourceType string, authorizer Authorizer) {
	r.set(r.service, resourceType, authorizer)
}

// RegisterCustom installs a custom authorizer the default authorizer delegates to.
func (r *Registry) RegisterCustom(resourceType string, authorizer Authorizer) {
	r.set(r.custom, resourceType, authorizer)
}

func (r *Registry) set(target map[string]Authorizer, resourceType string, authorizer Authorizer) {
	key := normalizeType(resourceType)
	r.mu.Lock()
	defer r.mu.Unlock()
	if authorizer == nil {
		delete(target, key)
		return
	}
	target[key] = authorizer
}

// Authorizer returns the service authorizer for the type, or the default
// authorizer when none is registered. It never returns nil.
func (r *Registry) Authorizer(resourceType string) Authorizer {
	key := normalizeType(resourceType)
	r.mu.RLock()
	authorizer, ok := r.service[key]
	r.mu.RUnlock()
	if ok {
		return authorizer
	}
	return &defaultAuthorizer{registry: r, resourceType: key}
}

// Custom returns the custom authorizer for the type if one is registered.
func (r *Registry) Custom(resourceType string) (Authorizer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	authorizer, ok := r.custom[normalizeType(resourceType)]
	return authorizer, ok
}

// Providers lists the authorizers for the given types in order. For each type
// the custom provider comes first when present, followed by the service
// provider (registered or default). Without arguments every known type is
// listed in name order.
func (r *Registry) Providers(resourceTypes ...string) []Provider {
	if len(resourceTypes) == 0 {
		resourceTypes = r.knownTypes()
	}
	providers := make([]Provider, 0, len(resourceTypes)*2)
	for _, resourceType := range resourceTypes {
		key := normalizeType(resourceType)
		if custom, ok := r.Custom(key); ok {
			providers = append(providers, Provider{Token: CustomToken(key), Custom: true, Authorizer: custom})
		}
		authorizer := r.Authorizer(key)
		_, isDefault := authorizer.(*defaultAuthorizer)
		providers = append(providers, Provider{Token: Token(key), Default: isDefault, Authorizer: authorizer})
	}
	return providers
}

// Authorize is a convenience for Authorizer(req.ResourceType).Authorize.
func (r *Registry) Authorize(ctx context.Context, req Request) (Decision, error) {
	return r.Authorizer(req.ResourceType).Authorize(ctx, req)
}

func (r *Registry) knownTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make(map[string]struct{}, len(r.service)+len(r.custom))
	for key := range r.service {
		set[key] = struct{}{}
	}
	for key := range r.custom {
		set[key] = struct{}{}
	}
	types := make([]string, 0, len(set))
	for key := range set {
		types = append(types, key)
	}
	sort.Strings(types)
	return types
}

// Token names the service provider for a resource type.
func Token(resourceType string) string {
	return normalizeType(resourceType) + ".authorizer"
}

// CustomToken names the custom provider for a resource type.
func CustomToken(resourceType string) string {
	return normalizeType(resourceType) + ".custom-authorizer"
}

func normalizeType(resourceType string) string {
	return strings.ToLower(strings.TrimSpace(resourceType))
}

// defaultAuthorizer permits everything unless a custom authorizer for the
// same type says otherwise. The custom filter is merged over an empty base.
type defaultAuthorizer struct {
	registry     *Registry
	resourceType string
}

func (d *defaultAuthorizer) Authorize(ctx context.Context, req Request) (Decision, error) {
	custom, ok := d.registry.Custom(d.resourceType)
	if !ok {
		return Permit(), nil
	}
	decision, err := custom.Authorize(ctx, req)
	if err != nil {
		return Decision{}, fmt.Errorf("custom authorizer %s: %w", d.resourceType, err)
	}
	filter := map[string]any{}
	maps.Copy(filter, decision.Filter)
	decision.Filter = filter
	return decision, nil
}
