package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SigPull/internal/domain/models"
	"SigPull/internal/domain/repository"
	pkgkafka "SigPull/pkg/kafka"
)

// ClickHouseSignalStore implements Storage for ClickHouse.
type ClickHouseSignalStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseSignalStore creates ClickHouse signal storage.
func NewClickHouseSignalStore(db *sql.DB, table string) repository.Storage {
	return &ClickHouseSignalStore{db: db, table: table}
}

func (s *ClickHouseSignalStore) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

const signalColumns = "ts, symbol, direction, entry, target1, target2, target3, stop_loss, leverage, confidence, platform, channel, message_id, strategy, warnings"

func signalArgs(sig *models.Signal) []interface{} {
	var t1, t2, t3 float64
	if len(sig.Targets) > 0 {
		t1 = sig.Targets[0]
	}
	if len(sig.Targets) > 1 {
		t2 = sig.Targets[1]
	}
	if len(sig.Targets) > 2 {
		t3 = sig.Targets[2]
	}
	ts := sig.ExtractedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return []interface{}{
		ts,
		sig.Symbol,
		string(sig.Direction),
		sig.Entry,
		t1, t2, t3,
		sig.StopLoss,
		uint8(sig.Leverage),
		uint8(sig.Confidence),
		string(sig.Source.Platform),
		sig.Source.Channel,
		sig.Source.MessageID,
		sig.Source.Strategy,
		strings.Join(sig.Warnings, ";"),
	}
}

func (s *ClickHouseSignalStore) Store(ctx context.Context, sig *models.Signal) error {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table, signalColumns)
	_, err := s.db.ExecContext(ctx, q, signalArgs(sig)...)
	return err
}

func (s *ClickHouseSignalStore) StoreBatch(ctx context.Context, signals []*models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	// Multi-row VALUES insert to reduce round-trips.
	const chunkSize = 500
	for start := 0; start < len(signals); start += chunkSize {
		end := start + chunkSize
		if end > len(signals) {
			end = len(signals)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*15)
		for _, sig := range signals[start:end] {
			if sig == nil || sig.Symbol == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, signalArgs(sig)...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, signalColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseSignalStore) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Signal, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE ts >= ? AND ts <= ?", signalColumns, s.table)
	args := []interface{}{from, to}
	if symbol != "" {
		q += " AND symbol = ?"
		args = append(args, symbol)
	}
	q += " ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []*models.Signal
	for rows.Next() {
		var (
			sig          models.Signal
			ts           time.Time
			direction    string
			t1, t2, t3   float64
			lev, conf    uint8
			platform     string
			warningsJoin string
		)
		if err := rows.Scan(&ts, &sig.Symbol, &direction, &sig.Entry, &t1, &t2, &t3,
			&sig.StopLoss, &lev, &conf, &platform, &sig.Source.Channel,
			&sig.Source.MessageID, &sig.Source.Strategy, &warningsJoin); err != nil {
			return nil, err
		}
		sig.ExtractedAt = ts
		sig.Direction = models.Direction(direction)
		for _, t := range []float64{t1, t2, t3} {
			if t > 0 {
				sig.Targets = append(sig.Targets, t)
			}
		}
		sig.Leverage = int(lev)
		sig.Confidence = int(conf)
		sig.Source.Platform = models.Platform(platform)
		if warningsJoin != "" {
			sig.Warnings = strings.Split(warningsJoin, ";")
		}
		signals = append(signals, &sig)
	}
	return signals, rows.Err()
}

func (s *ClickHouseSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSignalStore) Close() error {
	return nil // Managed by pkg
}

// KafkaSignalPublisher implements Publisher for Kafka.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSignalPublisher creates a Kafka publisher keyed by pair symbol so
// all signals for a pair land on the same partition.
func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, s *models.Signal) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Symbol), s)
}

func (p *KafkaSignalPublisher) PublishBatch(ctx context.Context, signals []*models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(signals))
	for i, s := range signals {
		msgs[i] = pkgkafka.Message{Key: []byte(s.Symbol), Value: s}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
