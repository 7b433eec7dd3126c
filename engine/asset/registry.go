package asset

import (
	"context"
	"sync"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/sirupsen/logrus"
)

// Loader produces content for a locator at a LOD. It runs on a worker goroutine and must not touch engine state.
// A loader may return another Reference; resolution continues until the content is concrete.
type Loader func(ctx context.Context, locator string, lod int) (Content, error)

type registration struct {
	matcher Matcher
	loader  Loader
}

type registryImpl struct {
	mu      *sync.Mutex
	exact   map[string]Loader
	globs   []registration
	regexes []registration
	logger  logrus.FieldLogger
}

// Registry maps locator patterns to loaders. Resolution tries exact matches, then globs in registration order,
// then regular expressions in registration order. The first hit is cached as an exact entry.
type Registry interface {
	// Register adds loader under pattern. The pattern always registers an exact matcher, a glob matcher when it
	// contains wildcards, and a regex matcher when it compiles as an expression.
	//
	// Parameters:
	//   - pattern: the locator pattern
	//   - loader: the loader
	//
	// Returns:
	//   - error: ErrInvalidArgument for an empty pattern or nil loader
	Register(pattern string, loader Loader) error

	// Resolve finds the loader for locator.
	//
	// Parameters:
	//   - locator: the locator
	//
	// Returns:
	//   - Loader: the matching loader
	//   - MatcherKind: which matcher kind matched
	//   - error: ErrNotFound if nothing matches
	Resolve(locator string) (Loader, MatcherKind, error)

	// Matchers returns every registered non-exact matcher in evaluation order.
	Matchers() []Matcher
}

var _ Registry = &registryImpl{}

// NewRegistry creates an empty registry.
//
// Parameters:
//   - logger: logger for registration tracing; may be nil
//
// Returns:
//   - Registry: the registry
func NewRegistry(logger logrus.FieldLogger) Registry {
	return &registryImpl{
		mu:     &sync.Mutex{},
		exact:  make(map[string]Loader),
		logger: common.ComponentLogger(logger, "asset.registry"),
	}
}

func (r *registryImpl) Register(pattern string, loader Loader) error {
	if pattern == "" || loader == nil {
		return common.InvalidArgument("register %q: pattern and loader are required", pattern)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.exact[pattern] = loader
	kinds := []string{MatcherExact.String()}
	if HasGlobMeta(pattern) {
		if g, err := NewGlobMatcher(pattern); err == nil {
			r.globs = append(r.globs, registration{matcher: g, loader: loader})
			kinds = append(kinds, MatcherGlob.String())
		}
	}
	if re, err := NewRegexMatcher(pattern); err == nil {
		r.regexes = append(r.regexes, registration{matcher: re, loader: loader})
		kinds = append(kinds, MatcherRegex.String())
	}
	r.logger.WithFields(logrus.Fields{"pattern": pattern, "matchers": kinds}).Debug("loader registered")
	return nil
}

func (r *registryImpl) Resolve(locator string) (Loader, MatcherKind, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.exact[locator]; ok {
		return l, MatcherExact, nil
	}
	for _, set := range [][]registration{r.globs, r.regexes} {
		for _, reg := range set {
			if reg.matcher.Match(locator) {
				r.exact[locator] = reg.loader
				return reg.loader, reg.matcher.Kind(), nil
			}
		}
	}
	return nil, 0, common.NotFound("no loader for %q", locator)
}

func (r *registryImpl) Matchers() []Matcher {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Matcher, 0, len(r.globs)+len(r.regexes))
	for _, reg := range r.globs {
		out = append(out, reg.matcher)
	}
	for _, reg := range r.regexes {
		out = append(out, reg.matcher)
	}
	return out
}
