package selftrade

import (
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// Registry resolves a named, versioned self-trade policy. Grounded on the
// teacher's plugin registry (internal/trading/matching/algorithm/plugin),
// which used Masterminds/semver to gate plugin compatibility against a
// host-supported version range; here the same constraint check guards
// registering a policy build against an incompatible engine version.
type Registry struct {
	mu            sync.RWMutex
	policies      map[string]Policy
	engineVersion *semver.Version
}

// NewRegistry builds a registry that will only accept policies declaring
// compatibility with engineVersion.
func NewRegistry(engineVersion string) (*Registry, error) {
	v, err := semver.NewVersion(engineVersion)
	if err != nil {
		return nil, fmt.Errorf("selftrade: invalid engine version %q: %w", engineVersion, err)
	}
	r := &Registry{
		policies:      make(map[string]Policy),
		engineVersion: v,
	}
	r.mustRegister(SkipMakerPolicy{}, ">=1.0.0")
	r.mustRegister(NoopPolicy{}, ">=1.0.0")
	return r, nil
}

func (r *Registry) mustRegister(p Policy, constraint string) {
	if err := r.Register(p, constraint); err != nil {
		panic(err)
	}
}

// Register adds a policy, rejecting it if constraint does not admit the
// registry's engine version.
func (r *Registry) Register(p Policy, constraint string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("selftrade: invalid constraint %q for policy %q: %w", constraint, p.Name(), err)
	}
	if !c.Check(r.engineVersion) {
		return fmt.Errorf("selftrade: policy %q constraint %q does not admit engine version %s", p.Name(), constraint, r.engineVersion)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.Name()] = p
	return nil
}

// Resolve returns the named policy, defaulting to SkipMakerPolicy if name
// is empty.
func (r *Registry) Resolve(name string) (Policy, error) {
	if name == "" {
		name = "skip-maker"
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[name]
	if !ok {
		return nil, fmt.Errorf("selftrade: unknown policy %q", name)
	}
	return p, nil
}
