// Package stream publishes ledger and payout events to NATS for downstream
// consumers (notifications, analytics, admin dashboards). Publication is
// best-effort: producers drop events when the channel is full, and
// consumers needing completeness read the durable log instead.
package stream

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/krismatthes/drawdash-sub002/internal/ledger"
	"github.com/krismatthes/drawdash-sub002/internal/observability"
	"github.com/krismatthes/drawdash-sub002/internal/payout"
)

// Outbound subject space. The prefixed subjects append the transaction
// type or request status.
const (
	SubjectTxPrefix     = "drawdash.ledger.tx."
	SubjectBalance      = "drawdash.ledger.balance"
	SubjectPayoutPrefix = "drawdash.payouts.request."
	SubjectPayoutFlag   = "drawdash.payouts.flag"
	SubjectPayoutMethod = "drawdash.payouts.method"
)

// Event is one message ready for publication.
type Event struct {
	Subject string
	Payload []byte
}

// FromLedger renders a ledger output as outbound events.
func FromLedger(out ledger.Output) []Event {
	events := make([]Event, 0, 2)
	if out.Tx != nil {
		if payload, err := json.Marshal(out.Tx); err == nil {
			events = append(events, Event{Subject: SubjectTxPrefix + string(out.Tx.Type), Payload: payload})
		}
	}
	if payload, err := json.Marshal(out.Balance); err == nil {
		events = append(events, Event{Subject: SubjectBalance, Payload: payload})
	}
	return events
}

// FromPayout renders a payout engine event as outbound events.
func FromPayout(ev payout.Event) []Event {
	var events []Event
	if ev.Request != nil {
		if payload, err := json.Marshal(ev.Request); err == nil {
			events = append(events, Event{Subject: SubjectPayoutPrefix + string(ev.Request.Status), Payload: payload})
		}
	}
	if ev.Flag != nil {
		if payload, err := json.Marshal(ev.Flag); err == nil {
			events = append(events, Event{Subject: SubjectPayoutFlag, Payload: payload})
		}
	}
	if ev.Method != nil {
		if payload, err := json.Marshal(ev.Method); err == nil {
			events = append(events, Event{Subject: SubjectPayoutMethod, Payload: payload})
		}
	}
	return events
}

// Publisher drains the event channel onto the NATS connection.
type Publisher struct {
	nc      *nats.Conn
	input   <-chan Event
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewPublisher(nc *nats.Conn, input <-chan Event, log zerolog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{nc: nc, input: input, log: log, metrics: metrics}
}

// Run publishes until ctx is cancelled or the channel closes. Publish
// failures are counted and logged, never retried; the durable log is the
// source of truth.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.input:
			if !ok {
				return
			}
			if err := p.nc.Publish(ev.Subject, ev.Payload); err != nil {
				if p.metrics != nil {
					p.metrics.PublishErrors.Inc()
				}
				p.log.Warn().Err(err).Str("subject", ev.Subject).Msg("publish failed")
				continue
			}
			if p.metrics != nil {
				p.metrics.PublishedEvents.WithLabelValues(ev.Subject).Inc()
			}
		}
	}
}
