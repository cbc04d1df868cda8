package validation

import (
	"fmt"
	"sort"

	"validbus/pkg/domain"
	dErrors "validbus/pkg/domain-errors"
)

// Registry maps validation-type tags to validator implementations. It is
// built once at startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	validators map[domain.ValidationType]Validator
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[domain.ValidationType]Validator)}
}

// Register binds a validator to a type tag. Registering the same tag twice is
// a wiring bug and panics at startup rather than silently shadowing.
func (r *Registry) Register(t domain.ValidationType, v Validator) {
	if v == nil {
		panic(fmt.Sprintf("registry: nil validator for type %q", t))
	}
	if _, exists := r.validators[t]; exists {
		panic(fmt.Sprintf("registry: duplicate validator for type %q", t))
	}
	r.validators[t] = v
}

// Resolve returns the validator for a type tag, or an unsupported-type error
// when the tag is unknown.
func (r *Registry) Resolve(t domain.ValidationType) (Validator, error) {
	v, ok := r.validators[t]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnsupportedType,
			fmt.Sprintf("validation type %q is not supported", t))
	}
	return v, nil
}

// Types lists the registered type tags in stable order, for logging and the
// health endpoint.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.validators))
	for t := range r.validators {
		types = append(types, string(t))
	}
	sort.Strings(types)
	return types
}
