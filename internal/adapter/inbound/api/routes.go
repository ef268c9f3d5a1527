package api

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

const metricsPattern = "GET /metrics"

var (
	allowedMethods = map[string]bool{
		http.MethodGet: true, http.MethodPost: true, http.MethodPut: true, http.MethodDelete: true,
		http.MethodPatch: true, http.MethodHead: true, http.MethodOptions: true,
	}

	// pathParam matches one {name} wildcard segment.
	pathParam      = regexp.MustCompile(`\{([^{}/]*)\}`)
	paramNameValid = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// RouteRegistry collects the job API routes on a ServeMux and rejects
// malformed or shadowing patterns before ServeMux would panic on them.
type RouteRegistry struct {
	routes map[string]http.Handler
	// shapes maps a method plus wildcard-normalized path to the pattern that owns it.
	shapes map[string]string
	mux    *http.ServeMux
}

// NewRouteRegistry creates an empty RouteRegistry.
func NewRouteRegistry() *RouteRegistry {
	return &RouteRegistry{
		routes: make(map[string]http.Handler),
		shapes: make(map[string]string),
		mux:    http.NewServeMux(),
	}
}

// RegisterAPIRoutes registers the health, job and synchronous augmentation
// routes. A nil metrics handler leaves /metrics unregistered.
func (r *RouteRegistry) RegisterAPIRoutes(healthHandler *HealthHandler, jobHandler *JobHandler, metricsHandler http.Handler) {
	r.mustRegister("GET /health", http.HandlerFunc(healthHandler.GetHealth))
	r.mustRegister("POST /api/v1/jobs", http.HandlerFunc(jobHandler.SubmitJob))
	r.mustRegister("GET /api/v1/jobs", http.HandlerFunc(jobHandler.ListJobs))
	r.mustRegister("GET /api/v1/jobs/{id}", http.HandlerFunc(jobHandler.GetJob))
	r.mustRegister("POST /api/v1/augment", http.HandlerFunc(jobHandler.AugmentSync))
	if metricsHandler != nil {
		r.RegisterMetricsRoute(metricsHandler)
	}
}

// RegisterMetricsRoute registers GET /metrics. The worker's admin listener
// serves only this route.
func (r *RouteRegistry) RegisterMetricsRoute(metricsHandler http.Handler) {
	r.mustRegister(metricsPattern, metricsHandler)
}

func (r *RouteRegistry) mustRegister(pattern string, handler http.Handler) {
	if err := r.RegisterRoute(pattern, handler); err != nil {
		panic(fmt.Errorf("failed to register route %s: %w", pattern, err))
	}
}

// RegisterRoute registers handler under a "METHOD /path" pattern.
func (r *RouteRegistry) RegisterRoute(pattern string, handler http.Handler) error {
	method, path, err := splitPattern(pattern)
	if err != nil {
		return err
	}

	shape := method + " " + pathParam.ReplaceAllString(path, "{}")
	if existing, ok := r.shapes[shape]; ok {
		if existing == pattern {
			return fmt.Errorf("route %q is already registered", pattern)
		}
		return fmt.Errorf("route %q shadows %q", pattern, existing)
	}

	r.mux.Handle(pattern, handler)
	r.routes[pattern] = handler
	r.shapes[shape] = pattern
	return nil
}

// BuildServeMux returns the configured ServeMux.
func (r *RouteRegistry) BuildServeMux() *http.ServeMux {
	return r.mux
}

// HasRoute reports whether pattern is registered.
func (r *RouteRegistry) HasRoute(pattern string) bool {
	_, exists := r.routes[pattern]
	return exists
}

// RouteCount returns the number of registered routes.
func (r *RouteRegistry) RouteCount() int {
	return len(r.routes)
}

func splitPattern(pattern string) (string, string, error) {
	if strings.TrimSpace(pattern) == "" {
		return "", "", fmt.Errorf("route pattern cannot be empty")
	}

	method, path, ok := strings.Cut(pattern, " ")
	if !ok {
		return "", "", fmt.Errorf("route %q must have the form 'METHOD /path'", pattern)
	}
	if !allowedMethods[method] {
		return "", "", fmt.Errorf("route %q has unsupported method %q", pattern, method)
	}
	if !strings.HasPrefix(path, "/") {
		return "", "", fmt.Errorf("route %q: path must start with '/'", pattern)
	}
	if strings.Contains(path, "//") {
		return "", "", fmt.Errorf("route %q: path contains an empty segment", pattern)
	}

	// Every brace must belong to a well-formed {name} wildcard.
	if strings.ContainsAny(pathParam.ReplaceAllString(path, ""), "{}") {
		return "", "", fmt.Errorf("route %q: unbalanced wildcard braces", pattern)
	}
	seen := make(map[string]bool)
	for _, match := range pathParam.FindAllStringSubmatch(path, -1) {
		name := match[1]
		if !paramNameValid.MatchString(name) {
			return "", "", fmt.Errorf("route %q: invalid wildcard name %q", pattern, name)
		}
		if seen[name] {
			return "", "", fmt.Errorf("route %q: duplicate wildcard %q", pattern, name)
		}
		seen[name] = true
	}
	return method, path, nil
}
