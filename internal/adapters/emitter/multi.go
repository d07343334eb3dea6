// Package emitter forwards accepted events to external sinks.
package emitter

import (
	"context"
	"errors"
	"fmt"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/metrics"
)

type sink struct {
	name    string
	emitter domain.EventEmitter
}

// Multi fans an event out to every registered sink. A failing sink does not
// stop delivery to the others.
type Multi struct {
	sinks   []sink
	metrics *metrics.Metrics
}

// NewMulti creates an empty fan-out. m may be nil.
func NewMulti(m *metrics.Metrics) *Multi {
	return &Multi{metrics: m}
}

// Add registers a named sink.
func (m *Multi) Add(name string, e domain.EventEmitter) {
	m.sinks = append(m.sinks, sink{name: name, emitter: e})
}

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Emit delivers record to every sink and joins their errors.
func (m *Multi) Emit(ctx context.Context, record domain.EventRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.emitter.Emit(ctx, record); err != nil {
			m.metrics.EmitFailed(s.name)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.emitter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
