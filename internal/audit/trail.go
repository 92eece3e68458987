// Package audit keeps an optional append-only trail of published party
// events in Postgres. Events are not otherwise persisted.
package audit

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"watchparty-service/internal/models"
	"watchparty-service/internal/observability"
)

// Recorder accepts published events without blocking the publish path.
type Recorder interface {
	Record(event models.PartyEvent)
}

// Nop returns a Recorder that discards everything, used when the trail is
// disabled by configuration.
func Nop() Recorder {
	return nopRecorder{}
}

type nopRecorder struct{}

func (nopRecorder) Record(models.PartyEvent) {}

// Trail writes events to the party_events table from a single background
// goroutine. When the buffer is full events are dropped and counted.
type Trail struct {
	db     *sqlx.DB
	events chan models.PartyEvent
	done   chan struct{}
	log    *zap.Logger
}

const insertEvent = `
	INSERT INTO party_events (party_id, user_id, user_name, event_type, payload, event_ts)
	VALUES ($1, $2, $3, $4, $5, $6)`

// Open connects to the audit database, applies the schema and starts the
// writer goroutine.
func Open(dsn string, log *zap.Logger) (*Trail, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	t := &Trail{
		db:     db,
		events: make(chan models.PartyEvent, 1024),
		done:   make(chan struct{}),
		log:    log,
	}
	go t.run()
	return t, nil
}

func migrate(db *sqlx.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS party_events (
        id BIGSERIAL PRIMARY KEY,
        party_id TEXT NOT NULL,
        user_id BIGINT NOT NULL DEFAULT 0,
        user_name TEXT NOT NULL DEFAULT '',
        event_type TEXT NOT NULL,
        payload JSONB,
        event_ts TIMESTAMPTZ NOT NULL,
        recorded_at TIMESTAMPTZ DEFAULT NOW()
    );`)
	return err
}

// Record enqueues an event for the background writer. It never blocks.
func (t *Trail) Record(event models.PartyEvent) {
	select {
	case t.events <- event:
	default:
		observability.IncAuditDropped()
		t.log.Warn("audit buffer full, dropping event",
			zap.String("party_id", event.PartyID),
			zap.String("event_type", string(event.Type)))
	}
}

func (t *Trail) run() {
	defer close(t.done)
	for event := range t.events {
		var payload interface{}
		if len(event.Payload) > 0 {
			payload = []byte(event.Payload)
		}
		_, err := t.db.Exec(insertEvent,
			event.PartyID, event.UserID, event.UserName,
			string(event.Type), payload, event.Timestamp)
		if err != nil {
			t.log.Error("audit insert failed", zap.Error(err))
		}
	}
}

// Close drains the buffer and closes the database connection.
func (t *Trail) Close() error {
	close(t.events)
	<-t.done
	return t.db.Close()
}

// Ping reports audit database reachability for health checks.
func (t *Trail) Ping() error {
	return t.db.Ping()
}
