package cfb

import "go.uber.org/zap"

// Option configures a single Open, Decode or Encode call.
type Option func(*options)

type options struct {
	validation  Validation
	version     Version
	maxFileSize int64
	log         *zap.Logger
}

func defaultOptions() options {
	return options{
		validation: ValidationPermissive,
		version:    V3,
		log:        zap.NewNop(),
	}
}

func newOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithValidation selects how strictly a file is checked while decoding.
func WithValidation(v Validation) Option {
	return func(o *options) {
		o.validation = v
	}
}

// WithVersion selects the container version written by Encode.
func WithVersion(v Version) Option {
	return func(o *options) {
		o.version = v
	}
}

// WithMaxFileSize makes Open and Decode reject buffers larger than n bytes.
// Zero means no limit besides the format's own.
func WithMaxFileSize(n int64) Option {
	return func(o *options) {
		o.maxFileSize = n
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = zap.NewNop()
		}
		o.log = l
	}
}
