package eventargs

// Property is a value derived from an event-argument type A.
type Property[A, V any] struct {
	name string
	get  func(A) V
}

// NewProperty declares a derived value. get is the real accessor used when
// no scope substitutes it.
func NewProperty[A, V any](name string, get func(A) V) *Property[A, V] {
	return &Property[A, V]{name: name, get: get}
}

// Name returns the property name.
func (p *Property[A, V]) Name() string {
	return p.name
}

// Get returns the substituted value when the open scope overrides p, and
// the real accessor's value otherwise.
func (p *Property[A, V]) Get(args A) V {
	if fn, ok := Current().override(p); ok {
		return fn.(func(A) V)(args)
	}
	return p.get(args)
}

// Substitute overrides p for the lifetime of s.
func Substitute[A, V any](s *Scope, p *Property[A, V], fn func(A) V) {
	if s == nil || p == nil || fn == nil {
		return
	}
	s.setOverride(p, fn)
}

// SubstituteValue overrides p with a constant.
func SubstituteValue[A, V any](s *Scope, p *Property[A, V], value V) {
	Substitute(s, p, func(A) V { return value })
}

// Restore removes a substitution of p from s.
func Restore[A, V any](s *Scope, p *Property[A, V]) {
	if s == nil || p == nil {
		return
	}
	s.clearOverride(p)
}

// Substitution is an Adapter that installs one substitution on Prepare and
// removes it on Teardown.
type Substitution[A, V any] struct {
	Property *Property[A, V]
	Resolve  func(A) V
}

// Prepare installs the substitution.
func (a Substitution[A, V]) Prepare(s *Scope) {
	Substitute(s, a.Property, a.Resolve)
}

// Teardown removes it.
func (a Substitution[A, V]) Teardown(s *Scope) {
	Restore(s, a.Property)
}
