package repository

import (
	"context"
	"time"

	"SigPull/internal/domain/models"
)

// MessageStream is a live source of raw channel messages.
type MessageStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher publishes extracted signals downstream.
type Publisher interface {
	Publish(ctx context.Context, s *models.Signal) error
	PublishBatch(ctx context.Context, signals []*models.Signal) error
	Close() error
}

// Storage persists extracted signals.
type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, s *models.Signal) error
	StoreBatch(ctx context.Context, signals []*models.Signal) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Signal, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type Metrics interface {
	RecordSignal(backend, symbol string)
	RecordError(kind string)
	RecordConfidence(symbol string, confidence float64)
	RecordLatency(op string, seconds float64)
}
