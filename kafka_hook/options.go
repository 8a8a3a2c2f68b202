package kafkahook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithTopic sets the destination topic.
func WithTopic(topic string) Option {
	return func(e *Extension) {
		if topic != "" {
			e.topic = topic
		}
	}
}

// WithLogger sets the logger for the extension.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}
