package event_type

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/unical/unical/pkg/calendar"
)

// Repository remembers the local classification of remote events, which the
// remote calendars have no field for.
type Repository interface {
	GetTypes(ctx context.Context, account string, eventIds []string) (map[string]calendar.Type, error)
	SetType(ctx context.Context, account string, eventId string, eventType calendar.Type) error
	DeleteType(ctx context.Context, account string, eventId string) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) GetTypes(ctx context.Context, account string, eventIds []string) (map[string]calendar.Type, error) {
	types := make(map[string]calendar.Type, len(eventIds))
	if len(eventIds) == 0 {
		return types, nil
	}

	query := `SELECT event_id, type FROM event_type WHERE account = $1 AND event_id = ANY($2)`
	rows, err := r.db.Query(ctx, query, account, eventIds)
	if err != nil {
		err := fmt.Errorf("could not query event types: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var eventId, eventType string
		if err := rows.Scan(&eventId, &eventType); err != nil {
			return nil, fmt.Errorf("could not scan event type: %w", err)
		}
		types[eventId] = calendar.Type(eventType)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not read event types: %w", err)
	}
	return types, nil
}

func (r *RepositoryImpl) SetType(ctx context.Context, account string, eventId string, eventType calendar.Type) error {
	query := `INSERT INTO event_type (account, event_id, type, updated_at)
				VALUES ($1, $2, $3, now())
				ON CONFLICT (account, event_id) DO UPDATE SET type = EXCLUDED.type, updated_at = now()`
	if _, err := r.db.Exec(ctx, query, account, eventId, string(eventType)); err != nil {
		err := fmt.Errorf("could not store event type: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) DeleteType(ctx context.Context, account string, eventId string) error {
	query := `DELETE FROM event_type WHERE account = $1 AND event_id = $2`
	if _, err := r.db.Exec(ctx, query, account, eventId); err != nil {
		err := fmt.Errorf("could not delete event type: %w", err)
		log.Error(err)
		return err
	}
	return nil
}
