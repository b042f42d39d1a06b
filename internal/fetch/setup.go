package fetch

// Options controls how a stage treats unsuccessful responses.
type Options struct {
	// ReturnErroneousFetch passes non-2xx responses downstream instead of
	// failing with a StatusError.
	ReturnErroneousFetch bool
}

// Setup is the configuration attached to a pipeline stage: a Config
// transform, a response predicate and tolerance options.
// The zero value is the identity transform, accepts every response and is
// strict.
type Setup struct {
	configure  func(Config) Config
	accept     func(*Info) bool
	options    Options
	hasOptions bool
}

// DefaultSetup returns the identity setup.
func DefaultSetup() Setup {
	return Setup{}
}

// Configure applies the transform to c.
func (s Setup) Configure(c Config) Config {
	if s.configure == nil {
		return c
	}
	return s.configure(c)
}

// Accept applies the predicate to info.
func (s Setup) Accept(info *Info) bool {
	if s.accept == nil {
		return true
	}
	return s.accept(info)
}

// Options returns the tolerance options.
func (s Setup) Options() Options {
	return s.options
}

// WithConfigurer returns a setup whose transform is f applied after the
// existing transform.
func (s Setup) WithConfigurer(f func(Config) Config) Setup {
	if f == nil {
		return s
	}
	s.configure = compose(s.configure, f)
	return s
}

// WithFilter returns a setup whose predicate is the existing predicate
// AND p.
func (s Setup) WithFilter(p func(*Info) bool) Setup {
	if p == nil {
		return s
	}
	s.accept = and(s.accept, p)
	return s
}

// WithOptions returns a setup with the options replaced wholesale.
func (s Setup) WithOptions(o Options) Setup {
	s.options = o
	s.hasOptions = true
	return s
}

// Merge returns the setup a dependent stage runs with when s is inherited
// and child is the stage's own setup: child transforms run after s, the
// predicates are ANDed and child options win when the child set any.
func (s Setup) Merge(child Setup) Setup {
	merged := Setup{
		configure:  compose(s.configure, child.configure),
		accept:     and(s.accept, child.accept),
		options:    s.options,
		hasOptions: s.hasOptions,
	}
	if child.hasOptions {
		merged.options = child.options
		merged.hasOptions = true
	}
	return merged
}

func compose(first, then func(Config) Config) func(Config) Config {
	switch {
	case first == nil:
		return then
	case then == nil:
		return first
	}
	return func(c Config) Config {
		return then(first(c))
	}
}

func and(a, b func(*Info) bool) func(*Info) bool {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(info *Info) bool {
		return a(info) && b(info)
	}
}
