package gateway

import (
	"log/slog"

	"github.com/qbitshield/authgate/pkg/logger"
)

type deps struct {
	log     *slog.Logger
	metrics *Metrics
}

// Option configures the ambient collaborators shared by all components.
type Option func(*deps)

func WithLogger(l *slog.Logger) Option {
	return func(d *deps) { d.log = l }
}

func WithMetrics(m *Metrics) Option {
	return func(d *deps) { d.metrics = m }
}

func newDeps(component string, opts []Option) deps {
	d := deps{log: logger.NewNop()}
	for _, opt := range opts {
		opt(&d)
	}
	d.log = d.log.With(logger.Component(component))
	return d
}
