package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"SigFusion/internal/domain/models"
	"SigFusion/internal/domain/repository"
	pkgkafka "SigFusion/pkg/kafka"
)

// ClickHouseVerdictHistory implements VerdictHistory for ClickHouse.
// Scalar columns carry the queryable fields; payload keeps the full
// verdict so Recent can rehydrate it losslessly.
type ClickHouseVerdictHistory struct {
	db    *sql.DB
	table string
}

// NewClickHouseVerdictHistory creates a ClickHouse verdict store.
func NewClickHouseVerdictHistory(db *sql.DB, table string) repository.VerdictHistory {
	return &ClickHouseVerdictHistory{db: db, table: table}
}

func (s *ClickHouseVerdictHistory) Append(ctx context.Context, v *models.Verdict) error {
	if v == nil {
		return fmt.Errorf("verdict is nil")
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (ts, symbol, direction, score, probability, coverage, recommendation, cancelled, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.table,
	)
	cancelled := uint8(0)
	if v.Cancelled {
		cancelled = 1
	}
	_, err = s.db.ExecContext(ctx, q,
		v.GeneratedAt,
		v.Symbol,
		string(v.Direction),
		v.Score,
		v.Probability,
		v.Coverage,
		v.Recommendation,
		cancelled,
		string(payload),
	)
	return err
}

func (s *ClickHouseVerdictHistory) Recent(ctx context.Context, symbol string, limit int) ([]*models.Verdict, error) {
	if limit <= 0 {
		limit = 20
	}
	q := fmt.Sprintf("SELECT payload FROM %s WHERE symbol = ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*models.Verdict, 0, limit)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var v models.Verdict
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return nil, fmt.Errorf("unmarshal verdict: %w", err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (s *ClickHouseVerdictHistory) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseVerdictHistory) Close() error {
	return nil // Managed by pkg
}

// KafkaVerdictPublisher implements VerdictPublisher for Kafka.
type KafkaVerdictPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaVerdictPublisher creates a Kafka verdict publisher.
func NewKafkaVerdictPublisher(producer *pkgkafka.Producer, topic string) repository.VerdictPublisher {
	return &KafkaVerdictPublisher{producer: producer, topic: topic}
}

func (p *KafkaVerdictPublisher) Publish(ctx context.Context, v *models.Verdict) error {
	return p.producer.Publish(ctx, p.topic, []byte(v.Symbol), v)
}

func (p *KafkaVerdictPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
