// Package prefix holds the namespace bindings declared in the prefix block
// of an edit table.
package prefix

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicatePrefix is returned by BindAll when a prefix is declared twice
// and the registry rejects duplicates.
var ErrDuplicatePrefix = errors.New("duplicate prefix declaration")

// DuplicatePolicy decides what happens when a prefix is declared more than once.
type DuplicatePolicy string

const (
	// DuplicateLastWins lets a later declaration overwrite an earlier one.
	DuplicateLastWins DuplicatePolicy = "last_wins"

	// DuplicateReject fails the whole table on a repeated prefix.
	DuplicateReject DuplicatePolicy = "reject"
)

// Valid reports whether the policy is one of the known values.
func (duplicatePolicy DuplicatePolicy) Valid() bool {
	return duplicatePolicy == DuplicateLastWins || duplicatePolicy == DuplicateReject
}

// Binding maps a prefix token (without trailing ':') to a namespace base.
type Binding struct {
	Prefix    string
	Namespace string
}

// Registry is an ordered prefix to namespace mapping. It is built once per
// table and only read afterwards, so it is safe to share between goroutines
// after BindAll returns.
type Registry struct {
	policy   DuplicatePolicy
	bindings map[string]string
	order    []string
}

// NewRegistry creates an empty registry with the given duplicate policy.
// An empty policy means DuplicateLastWins.
func NewRegistry(policy DuplicatePolicy) *Registry {
	if policy == "" {
		policy = DuplicateLastWins
	}
	return &Registry{
		policy:   policy,
		bindings: make(map[string]string),
	}
}

// Bind adds a single declaration. A trailing ':' on the prefix is removed
// and both values are trimmed; angle brackets around the namespace are
// dropped so the registry always stores the bare base.
func (registry *Registry) Bind(prefixToken, namespace string) error {
	name := strings.TrimSuffix(strings.TrimSpace(prefixToken), ":")
	base := strings.TrimSpace(namespace)
	if strings.HasPrefix(base, "<") && strings.HasSuffix(base, ">") {
		base = base[1 : len(base)-1]
	}
	if name == "" || base == "" {
		return fmt.Errorf("empty prefix or namespace in declaration %q -> %q", prefixToken, namespace)
	}

	if existing, ok := registry.bindings[name]; ok {
		if registry.policy == DuplicateReject {
			return fmt.Errorf("%w: %q (already bound to %s)", ErrDuplicatePrefix, name, existing)
		}
		registry.bindings[name] = base
		return nil
	}

	registry.bindings[name] = base
	registry.order = append(registry.order, name)
	return nil
}

// BindAll adds declarations in order.
func (registry *Registry) BindAll(bindings []Binding) error {
	for _, binding := range bindings {
		if err := registry.Bind(binding.Prefix, binding.Namespace); err != nil {
			return err
		}
	}
	return nil
}

// Resolve returns the namespace bound to prefix.
func (registry *Registry) Resolve(prefixToken string) (string, bool) {
	namespace, ok := registry.bindings[strings.TrimSuffix(prefixToken, ":")]
	return namespace, ok
}

// Bindings returns the current bindings in first-declaration order.
func (registry *Registry) Bindings() []Binding {
	bindings := make([]Binding, 0, len(registry.order))
	for _, name := range registry.order {
		bindings = append(bindings, Binding{Prefix: name, Namespace: registry.bindings[name]})
	}
	return bindings
}

// Len returns the number of distinct prefixes.
func (registry *Registry) Len() int {
	return len(registry.bindings)
}
