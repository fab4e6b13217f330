package eventlist

import (
	"github.com/google/uuid"
)

// config is what the options of a list configure.
type config struct {
	name             string
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
	selectionMode    SelectionMode
}

// Option defines a functional option for configuring a list or view.
type Option func(*config) error

// WithName sets the name used in logs, metric labels, and span attributes. The default is a random UUID.
func WithName(name string) Option {
	return func(c *config) error {
		if name == "" {
			return ErrEmptyListName
		}

		c.name = name

		return nil
	}
}

// WithLogger sets the logger for the list.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: every write with its duration and the number of published change blocks
// Info level: lifecycle events such as dispose
// Warn level: rejected operations (precondition violations).
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the list.
// It receives the same messages as the Logger, with the operation's context for trace correlation.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(c *config) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the list.
// The collector will receive write durations, published batch sizes, listener counts, and precondition violations.
func WithMetrics(collector MetricsCollector) Option {
	return func(c *config) error {
		c.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the list.
// Every public write runs inside a span named "EventList.<Operation>".
func WithTracing(collector TracingCollector) Option {
	return func(c *config) error {
		c.tracingCollector = collector
		return nil
	}
}

// WithSelectionMode sets the initial mode of a SelectionTracker. Other lists ignore it.
func WithSelectionMode(mode SelectionMode) Option {
	return func(c *config) error {
		c.selectionMode = mode
		return nil
	}
}

// newConfig applies options on top of inherited settings. A nil parent starts from defaults.
func newConfig(parent *observer, options []Option) (config, error) {
	c := config{
		name:          uuid.NewString(),
		selectionMode: SelectionMultipleRangeDefensive,
	}

	if parent != nil {
		c.logger = parent.logger
		c.contextualLogger = parent.contextualLogger
		c.metricsCollector = parent.metricsCollector
		c.tracingCollector = parent.tracingCollector
	}

	for _, option := range options {
		if err := option(&c); err != nil {
			return config{}, err
		}
	}

	return c, nil
}
