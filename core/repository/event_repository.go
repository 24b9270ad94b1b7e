package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"validation-viewer/core/models"
)

// EventRepository handles database operations for lookup events
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// CreateLookupEvent records a phase transition
func (r *EventRepository) CreateLookupEvent(ctx context.Context, event *models.LookupEvent) error {
	query := `
		INSERT INTO lookup_events (key, at, from_phase, to_phase, reason, meta_json)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	if event.At.IsZero() {
		event.At = time.Now()
	}

	var fromPhase sql.NullString
	if event.FromPhase != nil {
		fromPhase = sql.NullString{String: string(*event.FromPhase), Valid: true}
	}

	metaJSON := "{}"
	if len(event.MetaJSON) > 0 {
		b, err := json.Marshal(event.MetaJSON)
		if err != nil {
			return err
		}
		metaJSON = string(b)
	}

	return r.db.QueryRowContext(ctx, query,
		event.Key,
		event.At,
		fromPhase,
		event.ToPhase,
		event.Reason,
		metaJSON,
	).Scan(&event.ID)
}

// GetLookupEvents retrieves the latest events for a comparison key
func (r *EventRepository) GetLookupEvents(ctx context.Context, key string, limit int) ([]models.LookupEvent, error) {
	query := `
		SELECT id, key, at, from_phase, to_phase, reason, meta_json
		FROM lookup_events
		WHERE key = $1
		ORDER BY at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.LookupEvent
	for rows.Next() {
		var event models.LookupEvent
		var fromPhase sql.NullString
		var metaJSON string

		err := rows.Scan(
			&event.ID,
			&event.Key,
			&event.At,
			&fromPhase,
			&event.ToPhase,
			&event.Reason,
			&metaJSON,
		)
		if err != nil {
			return nil, err
		}

		if fromPhase.Valid {
			phase := models.Phase(fromPhase.String)
			event.FromPhase = &phase
		}

		if metaJSON != "" {
			json.Unmarshal([]byte(metaJSON), &event.MetaJSON)
		}

		events = append(events, event)
	}

	return events, rows.Err()
}
