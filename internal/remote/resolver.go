// internal/remote/resolver.go
package remote

import (
	"strings"

	custom_errors "gitledger/internal/errors"
	"gitledger/internal/model"
)

// Confidence tells how much a Resolution can be trusted.
type Confidence int

const (
	// ConfidenceHigh is reported when a structural matcher accepted the URL.
	ConfidenceHigh Confidence = iota
	// ConfidenceLow is reported by the positional fallback, which may mis-parse.
	ConfidenceLow
)

func (c Confidence) String() string {
	if c == ConfidenceLow {
		return "low"
	}
	return "high"
}

// Resolution is the outcome of resolving a remote URL.
type Resolution struct {
	Identity   model.RepositoryIdentity
	Matcher    string
	Confidence Confidence
}

// Matcher recognizes one family of remote URLs.
// Match receives a trimmed URL and reports whether it accepted it.
type Matcher struct {
	Name       string
	Confidence Confidence
	Match      func(url string) (model.RepositoryIdentity, bool)
}

// Resolver tries its matchers in order and stops at the first that accepts the URL.
type Resolver struct {
	matchers []Matcher
}

// NewResolver creates a Resolver over the given matchers.
// With no matchers it uses DefaultMatchers.
func NewResolver(matchers ...Matcher) *Resolver {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	return &Resolver{matchers: matchers}
}

var defaultResolver = NewResolver()

// Resolve resolves a remote URL with the default matcher cascade.
func Resolve(url string) (Resolution, error) {
	return defaultResolver.Resolve(url)
}

// Resolve maps a remote URL to its repository identity.
func (r *Resolver) Resolve(url string) (Resolution, error) {
	trimmed := normalizeURL(url)
	if trimmed == "" {
		return Resolution{}, &custom_errors.UnresolvableRemoteURLError{URL: StripCredentials(url), Reason: "empty url"}
	}

	for _, m := range r.matchers {
		id, ok := m.Match(trimmed)
		if !ok {
			continue
		}
		if id.Host == "" || id.Name == "" {
			continue
		}
		return Resolution{Identity: id, Matcher: m.Name, Confidence: m.Confidence}, nil
	}

	return Resolution{}, &custom_errors.UnresolvableRemoteURLError{URL: StripCredentials(trimmed), Reason: "no matcher accepted the url"}
}

// Matchers returns the names of the configured matchers in priority order.
func (r *Resolver) Matchers() []string {
	names := make([]string, len(r.matchers))
	for i, m := range r.matchers {
		names[i] = m.Name
	}
	return names
}

func normalizeURL(url string) string {
	url = strings.TrimSpace(url)
	return strings.TrimRight(url, "/")
}
