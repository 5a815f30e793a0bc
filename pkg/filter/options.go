package filter

// Option configures a filter call.
//
//	out, err := filter.Median(img, 5,
//	    filter.WithBoundary(filter.Replicate),
//	    filter.WithExecutor(filter.Parallel{Workers: 8}))
type Option func(*options)

type options struct {
	boundary Boundary
	executor Executor
}

func defaultOptions() options {
	return options{
		boundary: Zero,
		executor: Sequential{},
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithBoundary selects how samples outside the image are filled.
// The default is Zero.
func WithBoundary(b Boundary) Option {
	return func(o *options) {
		o.boundary = b
	}
}

// WithExecutor selects how rows are scheduled. The default is Sequential.
// A nil executor keeps the default.
func WithExecutor(e Executor) Option {
	return func(o *options) {
		if e != nil {
			o.executor = e
		}
	}
}
