// Package publish pushes committed entity changes to NATS JetStream for downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"musdScope/internal/model"
	"musdScope/internal/store"
)

const (
	// StreamName is the JetStream stream holding entity changes.
	StreamName = "MUSD_ENTITIES"
	// SubjectPrefix is followed by the entity kind: musd.entities.user, musd.entities.rwa_pool, ...
	SubjectPrefix = "musd.entities"
)

// JetStreamPublisher is the subset of jetstream.JetStream the publisher needs.
type JetStreamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Change is one entity document written by one event.
type Change struct {
	EventID     string          `json:"event_id"`
	Event       string          `json:"event"`
	BlockNumber uint64          `json:"block_number"`
	LogIndex    uint64          `json:"log_index"`
	TxHash      string          `json:"tx_hash"`
	Kind        string          `json:"kind"`
	Key         string          `json:"key"`
	Entity      json.RawMessage `json:"entity"`
}

// Publisher implements engine.Sink.
type Publisher struct {
	js     JetStreamPublisher
	logger *zap.Logger
}

func NewPublisher(js JetStreamPublisher, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{js: js, logger: logger}
}

// Publish sends every entity write of a committed event. Index and meta entries are not published.
// The message id is derived from the event and key so JetStream drops re-deliveries.
func (p *Publisher) Publish(ctx context.Context, ev model.TypedEventRecord, writes []store.Write) error {
	id := ev.EventID()
	sent := 0
	for _, w := range writes {
		if !w.IsEntity() {
			continue
		}
		change := Change{
			EventID:     id,
			Event:       ev.EventName,
			BlockNumber: ev.BlockNumber,
			LogIndex:    ev.LogIndex,
			TxHash:      ev.TxHash,
			Kind:        w.Kind(),
			Key:         w.Key,
			Entity:      json.RawMessage(w.Value),
		}
		data, err := json.Marshal(change)
		if err != nil {
			return fmt.Errorf("marshal change %s: %w", w.Key, err)
		}
		if _, err := p.js.Publish(ctx, Subject(change.Kind), data, jetstream.WithMsgID(id+"/"+w.Key)); err != nil {
			return fmt.Errorf("publish %s: %w", w.Key, err)
		}
		sent++
	}
	p.logger.Debug("published entity changes", zap.String("event", ev.EventName), zap.String("id", id), zap.Int("count", sent))
	return nil
}

func Subject(kind string) string {
	return SubjectPrefix + "." + kind
}

// Connect dials NATS, ensures the entity stream exists and returns a publisher
// together with the connection so the caller can drain it.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Publisher, *nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("musdScope indexer"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := EnsureStream(ctx, js); err != nil {
		nc.Close()
		return nil, nil, err
	}
	return NewPublisher(js, logger), nc, nil
}

// EnsureStream creates or updates the entity change stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SubjectPrefix + ".>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     7 * 24 * time.Hour,
		Duplicates: 10 * time.Minute,
		Replicas:   1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", StreamName, err)
	}
	return nil
}
