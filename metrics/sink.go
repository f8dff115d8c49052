package metrics

import (
	"context"

	"github.com/relaycast/relaycast-go/common"
)

const (
	metricsRoomJoins  = "room_join_total"
	metricsRoomLeaves = "room_leave_total"
)

// Sink records room membership events
//
//go:generate mockery --name Sink --output "../mocks" --outpkg mocks
type Sink interface {
	RecordJoin(ctx context.Context, session *common.Session, nspRoomID string) error
	RecordLeave(ctx context.Context, session *common.Session, nspRoomID string) error
}

// CounterSink counts joins and leaves in the instance registry
type CounterSink struct {
	metrics Instrumenter
}

var _ Sink = (*CounterSink)(nil)

func NewCounterSink(m Instrumenter) *CounterSink {
	m.RegisterCounter(metricsRoomJoins, "The total number of room joins")
	m.RegisterCounter(metricsRoomLeaves, "The total number of room leaves")

	return &CounterSink{metrics: m}
}

func (s *CounterSink) RecordJoin(ctx context.Context, session *common.Session, nspRoomID string) error {
	s.metrics.CounterIncrement(metricsRoomJoins)
	return nil
}

func (s *CounterSink) RecordLeave(ctx context.Context, session *common.Session, nspRoomID string) error {
	s.metrics.CounterIncrement(metricsRoomLeaves)
	return nil
}

// MultiSink records events to every sink and returns the first error
type MultiSink []Sink

func (ms MultiSink) RecordJoin(ctx context.Context, session *common.Session, nspRoomID string) error {
	var first error

	for _, s := range ms {
		if err := s.RecordJoin(ctx, session, nspRoomID); err != nil && first == nil {
			first = err
		}
	}

	return first
}

func (ms MultiSink) RecordLeave(ctx context.Context, session *common.Session, nspRoomID string) error {
	var first error

	for _, s := range ms {
		if err := s.RecordLeave(ctx, session, nspRoomID); err != nil && first == nil {
			first = err
		}
	}

	return first
}
