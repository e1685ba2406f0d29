package telemetry

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

const (
	TopicTelemetry = "gateway-telemetry"
	TopicErrors    = "gateway-errors"
	TopicRoutes    = "gateway-routes"

	defaultQueueSize = 8192
)

// Publisher implements C11: a bounded non-blocking queue drained by one
// background goroutine that produces to the three topics of spec §4.11
// over a github.com/twmb/franz-go client, configured for idempotent
// production so the producer's own retries can't create duplicates beyond
// the at-least-once contract the bus already tolerates.
type Publisher struct {
	client  *kgo.Client
	queue   chan any
	dropped atomic.Int64
	done    chan struct{}
}

// NewPublisher dials brokers and starts the drain loop. A nil/unreachable
// broker list still returns a usable Publisher: Submit keeps
// queueing (and dropping on overflow) while the drain loop retries
// connecting with backoff, per spec §4.11's "continues accepting new
// events on bus unavailability".
func NewPublisher(brokers []string) (*Publisher, error) {
	// franz-go's producer is idempotent by default (DisableIdempotentWrite
	// is the opt-out); leaving it at that default satisfies spec §4.11's
	// "idempotent producer behavior must be enabled".
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.LeaderAck()),
	)
	if err != nil {
		return nil, err
	}

	p := &Publisher{
		client: client,
		queue:  make(chan any, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go p.drain()
	return p, nil
}

// Submit implements Sink. It never blocks: a full queue drops the event
// and increments the drop counter instead.
func (p *Publisher) Submit(e Event) {
	select {
	case p.queue <- e:
	default:
		p.dropped.Add(1)
	}
}

// SubmitRouteChanged enqueues a gateway-routes event, emitted by C1 on
// every Put/Delete.
func (p *Publisher) SubmitRouteChanged(rc RouteChanged) {
	select {
	case p.queue <- rc:
	default:
		p.dropped.Add(1)
	}
}

// Dropped returns the number of events dropped so far due to queue
// saturation.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) drain() {
	for {
		select {
		case item := <-p.queue:
			p.publish(item)
		case <-p.done:
			return
		}
	}
}

func (p *Publisher) publish(item any) {
	records, err := toRecords(item)
	if err != nil {
		log.WithError(err).Warn("failed to encode telemetry event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		for _, r := range records {
			if perr := p.client.ProduceSync(ctx, r).FirstErr(); perr != nil {
				return struct{}{}, perr
			}
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))
	if err != nil {
		log.WithError(err).Warn("telemetry publish failed after retries")
	}
}

func toRecords(item any) ([]*kgo.Record, error) {
	switch v := item.(type) {
	case Event:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		key := v.RouteID
		if key == "" {
			key = "unknown"
		}
		records := []*kgo.Record{{Topic: TopicTelemetry, Key: []byte(key), Value: data}}
		if v.isError() {
			records = append(records, &kgo.Record{Topic: TopicErrors, Key: []byte(key), Value: data})
		}
		return records, nil
	case RouteChanged:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return []*kgo.Record{{Topic: TopicRoutes, Key: []byte(v.RouteID), Value: data}}, nil
	default:
		return nil, nil
	}
}

// Close stops the drain loop and releases the underlying client. In-flight
// queued events are discarded - at-least-once delivery is a property of
// acknowledged produces, not of a clean shutdown.
func (p *Publisher) Close() {
	close(p.done)
	p.client.Close()
}

// Healthy reports whether the bus responds to a lightweight metadata
// request within timeout, using kmsg directly since a one-off
// connectivity probe doesn't need a full produce round trip.
func (p *Publisher) Healthy(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := kmsg.NewPtrMetadataRequest()
	req.Topics = nil // broker-level metadata only

	resp, err := p.client.Request(ctx, req)
	return err == nil && resp != nil
}
