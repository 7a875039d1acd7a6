// Package config contains the options used to set up a transfer.
package config

import (
	"errors"
	"time"

	"github.com/apex/log"

	"github.com/rftp/rftp/internal/model"
	"github.com/rftp/rftp/internal/networkio"
	"github.com/rftp/rftp/internal/runtimex"
)

// ErrUnknownProtocol indicates that a protocol name is not recognized.
var ErrUnknownProtocol = errors.New("config: unknown protocol")

// Protocol is a reliability discipline.
type Protocol string

const (
	// StopAndWait sends one unacknowledged frame at a time.
	StopAndWait = Protocol("sw")

	// GoBackN keeps a sliding window of unacknowledged frames and
	// retransmits the whole outstanding window on timeout.
	GoBackN = Protocol("gbn")
)

// NewProtocolFromString returns a protocol from its string representation,
// and an error if the representation is unknown.
func NewProtocolFromString(s string) (Protocol, error) {
	switch Protocol(s) {
	case StopAndWait:
		return StopAndWait, nil
	case GoBackN:
		return GoBackN, nil
	default:
		return "", ErrUnknownProtocol
	}
}

// Default values picked when the corresponding option is not given.
const (
	// DefaultSegmentSize is the payload size of a DATA frame.
	DefaultSegmentSize = 1400

	// DefaultRetransmitTimeout is the retransmit-timer duration.
	DefaultRetransmitTimeout = 250 * time.Millisecond

	// DefaultWindowSize is the Go-Back-N window capacity.
	DefaultWindowSize = 8
)

// Config contains the options for one transfer. The zero value is invalid;
// use [NewConfig].
type Config struct {
	// protocol is the reliability discipline for the sending side.
	protocol Protocol

	// segmentSize is the payload size used when segmenting source data.
	segmentSize int

	// timeout is the retransmit-timer duration.
	timeout time.Duration

	// windowSize is the Go-Back-N window capacity.
	windowSize int

	// maxRetries caps consecutive retransmissions of the same data;
	// zero means unbounded.
	maxRetries int

	// impairment is the simulated network condition for the endpoint.
	impairment networkio.Impairment

	// logger will be used to log events.
	logger model.Logger
}

// NewConfig returns a Config ready to run a transfer.
func NewConfig(options ...Option) *Config {
	cfg := &Config{
		protocol:    GoBackN,
		segmentSize: DefaultSegmentSize,
		timeout:     DefaultRetransmitTimeout,
		windowSize:  DefaultWindowSize,
		maxRetries:  0,
		impairment:  networkio.Impairment{},
		logger:      log.Log,
	}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

// Option is an option you can pass to initialize a [Config].
type Option func(config *Config)

// WithProtocol configures the reliability discipline.
func WithProtocol(p Protocol) Option {
	return func(config *Config) {
		runtimex.Assert(p == StopAndWait || p == GoBackN, "unknown protocol")
		config.protocol = p
	}
}

// Protocol returns the configured reliability discipline.
func (c *Config) Protocol() Protocol {
	return c.protocol
}

// WithSegmentSize configures the payload size of DATA frames.
func WithSegmentSize(size int) Option {
	return func(config *Config) {
		runtimex.Assert(size > 0 && size <= model.MaxPayloadSize, "segment size out of range")
		config.segmentSize = size
	}
}

// SegmentSize returns the configured segment size.
func (c *Config) SegmentSize() int {
	return c.segmentSize
}

// WithTimeout configures the retransmit-timer duration.
func WithTimeout(d time.Duration) Option {
	return func(config *Config) {
		runtimex.Assert(d > 0, "timeout must be positive")
		config.timeout = d
	}
}

// Timeout returns the configured retransmit-timer duration.
func (c *Config) Timeout() time.Duration {
	return c.timeout
}

// WithWindowSize configures the Go-Back-N window capacity.
func WithWindowSize(size int) Option {
	return func(config *Config) {
		runtimex.Assert(size > 0, "window size must be positive")
		config.windowSize = size
	}
}

// WindowSize returns the configured window capacity.
func (c *Config) WindowSize() int {
	return c.windowSize
}

// WithMaxRetries caps consecutive retransmissions of the same data. When
// the cap is exceeded the transfer fails instead of retrying forever.
// Zero, the default, means unbounded.
func WithMaxRetries(n int) Option {
	return func(config *Config) {
		runtimex.Assert(n >= 0, "max retries must be non-negative")
		config.maxRetries = n
	}
}

// MaxRetries returns the configured retry cap, zero meaning unbounded.
func (c *Config) MaxRetries() int {
	return c.maxRetries
}

// WithImpairment configures the simulated network conditions.
func WithImpairment(imp networkio.Impairment) Option {
	return func(config *Config) {
		config.impairment = imp
	}
}

// Impairment returns the configured impairment.
func (c *Config) Impairment() networkio.Impairment {
	return c.impairment
}

// WithLogger configures the passed [model.Logger].
func WithLogger(logger model.Logger) Option {
	return func(config *Config) {
		config.logger = logger
	}
}

// Logger returns the configured logger.
func (c *Config) Logger() model.Logger {
	return c.logger
}
