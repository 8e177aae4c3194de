package sink

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/triage-ai/denywatch/internal/classify"
	"github.com/triage-ai/denywatch/internal/source"
)

const insertTimeout = 30 * time.Second

// ClickHouseSink batch-inserts deny events into the deny_events table.
// Writes are synchronous: a batch export wants write-through, and a failed
// insert must fail the job that produced it.
type ClickHouseSink struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseSink opens a ClickHouse connection from the DSN.
func NewClickHouseSink(dsn string, logger *zap.Logger) (*ClickHouseSink, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewClickHouseSink: %w", err)
	}

	// ParseDSN enables TLS when ?secure=true is in the DSN; enforce it here
	// as a safety net for managed deployments on TLS-only ports.
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewClickHouseSink: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewClickHouseSink: %w", err)
	}

	return &ClickHouseSink{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}

// Write inserts the events as one batch and returns the table locator.
func (s *ClickHouseSink) Write(ctx context.Context, kind source.Kind, events []*classify.DenyEvent) (string, error) {
	location := "clickhouse://deny_events/" + kind.String()
	if len(events) == 0 {
		return location, nil
	}

	ctx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO deny_events (
			timestamp, subject_id, source,
			reason_codes, policy_names, severity,
			override_used, justification,
			xpia_detected, jailbreak_detected, policy_blocked,
			agent_id, session_id, turn_id,
			raw_payload
		)
	`)
	if err != nil {
		return "", fmt.Errorf("clickhouse sink: prepare batch: %w", err)
	}

	for _, ev := range events {
		if err := batch.Append(
			ev.Timestamp,
			ev.SubjectID,
			kind.String(),
			ev.Reasons.Values(),
			ev.Policies.Values(),
			ev.Severity.String(),
			boolToUint8(ev.OverrideUsed),
			ev.Justification,
			boolToUint8(ev.XPIADetected),
			boolToUint8(ev.JailbreakDetected),
			boolToUint8(ev.PolicyBlocked),
			ev.Correlation.AgentID,
			ev.Correlation.SessionID,
			ev.Correlation.TurnID,
			string(ev.Raw),
		); err != nil {
			return "", fmt.Errorf("clickhouse sink: append: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return "", fmt.Errorf("clickhouse sink: send batch of %d: %w", len(events), err)
	}

	s.logger.Info("clickhouse export written",
		zap.String("source", kind.String()),
		zap.Int("events", len(events)),
	)
	return location, nil
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
