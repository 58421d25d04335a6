// Package nats fans classified wallet activity out to subscribers, either
// through NATS JetStream or in process.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solboard/service/metrics"
	"github.com/brojonat/solboard/service/solana"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Bus publishes wallet activity and streams it back to subscribers.
type Bus interface {
	// PublishActivity publishes one event per transaction to "activity.{wallet}".
	PublishActivity(ctx context.Context, wallet string, txs []solana.ClassifiedTransaction) error

	// Subscribe streams events published after the call for wallet, or for
	// every wallet when wallet is empty. Delivery stops when ctx is done;
	// the channel is not closed.
	Subscribe(ctx context.Context, wallet string) (<-chan ActivityEvent, error)

	// Close releases the underlying connection.
	Close() error
}

const (
	// StreamName is the name of the JetStream stream for wallet activity.
	StreamName = "ACTIVITY"

	// SubjectPrefix prefixes every activity subject.
	SubjectPrefix = "activity."

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = SubjectPrefix + "*"

	// StreamRetention is how long messages are retained.
	StreamRetention = 7 * 24 * time.Hour

	// DuplicateWindow is how long a republished signature is dropped for.
	DuplicateWindow = time.Hour
)

type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStreamBus publishes activity to NATS JetStream and serves subscriptions
// from ephemeral consumers.
type JetStreamBus struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	pub     streamPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewJetStreamBus connects to NATS and ensures the activity stream exists.
func NewJetStreamBus(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamBus, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("solboard"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	bus := &JetStreamBus{
		nc:      nc,
		js:      js,
		pub:     js,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}

	if err := bus.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS activity bus initialized",
		"url", natsURL,
		"stream", StreamName,
	)
	return bus, nil
}

func (b *JetStreamBus) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := b.js.Stream(ctx, StreamName)
	if err == nil {
		if info, err := stream.Info(ctx); err == nil {
			b.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	b.logger.Info("creating JetStream stream", "stream", StreamName)
	_, err = b.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Classified wallet activity",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Duplicates:  DuplicateWindow,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// PublishActivity publishes every transaction and keeps going past failures.
// The returned error joins the individual failures.
func (b *JetStreamBus) PublishActivity(ctx context.Context, wallet string, txs []solana.ClassifiedTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	subject := Subject(wallet)
	var errs []error
	for _, ev := range NewActivityEvents(wallet, txs, b.now()) {
		if err := b.publish(ctx, subject, ev); err != nil {
			b.logger.ErrorContext(ctx, "failed to publish activity event",
				"signature", ev.Signature,
				"wallet", wallet,
				"error", err,
			)
			errs = append(errs, err)
		}
	}

	b.logger.DebugContext(ctx, "published activity batch",
		"wallet", wallet,
		"count", len(txs),
		"failed", len(errs),
	)
	return errors.Join(errs...)
}

func (b *JetStreamBus) publish(ctx context.Context, subject string, ev ActivityEvent) error {
	start := time.Now()
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal activity event: %w", err)
	}

	_, err = b.pub.Publish(ctx, subject, data, jetstream.WithMsgID(dedupID(ev)))
	status := "success"
	if err != nil {
		status = "error"
	}
	b.metrics.RecordNATSPublish(SubjectPrefix+"*", status, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to publish activity event: %w", err)
	}
	return nil
}

// Subscribe creates an ephemeral consumer that delivers only new messages.
func (b *JetStreamBus) Subscribe(ctx context.Context, wallet string) (<-chan ActivityEvent, error) {
	cons, err := b.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		FilterSubject:     SubjectFilter(wallet),
		AckPolicy:         jetstream.AckExplicitPolicy,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		InactiveThreshold: time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	out := make(chan ActivityEvent, 16)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		defer msg.Ack()

		var ev ActivityEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			b.logger.WarnContext(ctx, "failed to unmarshal activity event", "error", err)
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	go func() {
		<-ctx.Done()
		cc.Stop()
	}()
	return out, nil
}

// Close closes the connection to NATS.
func (b *JetStreamBus) Close() error {
	if b.nc != nil {
		b.nc.Close()
		b.logger.Info("NATS activity bus closed")
	}
	return nil
}
