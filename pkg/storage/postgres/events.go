package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/pulse/pkg/analytics"
)

// EventStore reads and writes usage events. It implements
// analytics.EventSource and analytics.EventSink.
type EventStore struct {
	db *sql.DB
}

// NewEventStore creates an event store over db.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// InsertEvent persists one event.
func (s *EventStore) InsertEvent(ctx context.Context, event analytics.Event) error {
	var properties interface{}
	if len(event.Properties) > 0 {
		data, err := json.Marshal(event.Properties)
		if err != nil {
			return fmt.Errorf("marshal properties: %w", err)
		}
		properties = data
	}

	var deviceType, deviceBrowser, deviceOS, country, city string
	if event.Context != nil {
		if d := event.Context.Device; d != nil {
			deviceType, deviceBrowser, deviceOS = d.Type, d.Browser, d.OS
		}
		if l := event.Context.Location; l != nil {
			country, city = l.Country, l.City
		}
	}

	query := `
		INSERT INTO analytics_events (
			id, event_type, user_id, organization_id, session_id,
			occurred_at, properties,
			device_type, device_browser, device_os, country, city
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.EventType,
		nullString(event.UserID), nullString(event.OrganizationID), nullString(event.SessionID),
		event.Timestamp, properties,
		nullString(deviceType), nullString(deviceBrowser), nullString(deviceOS),
		nullString(country), nullString(city),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvents returns events matching filter, oldest first.
func (s *EventStore) GetEvents(ctx context.Context, filter analytics.EventFilter) ([]analytics.Event, error) {
	query := `
		SELECT id, event_type, user_id, organization_id, session_id,
		       occurred_at, properties,
		       device_type, device_browser, device_os, country, city
		FROM analytics_events
		WHERE 1=1
	`
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.EventType != "" {
		query += " AND event_type = " + arg(filter.EventType)
	}
	if filter.UserID != "" {
		query += " AND user_id = " + arg(filter.UserID)
	}
	if filter.OrganizationID != "" {
		query += " AND organization_id = " + arg(filter.OrganizationID)
	}
	if !filter.Start.IsZero() {
		query += " AND occurred_at >= " + arg(filter.Start)
	}
	if !filter.End.IsZero() {
		query += " AND occurred_at <= " + arg(filter.End)
	}
	query += " ORDER BY occurred_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []analytics.Event
	for rows.Next() {
		var event analytics.Event
		var userID, orgID, sessionID sql.NullString
		var properties []byte
		var deviceType, deviceBrowser, deviceOS, country, city sql.NullString

		if err := rows.Scan(
			&event.ID, &event.EventType, &userID, &orgID, &sessionID,
			&event.Timestamp, &properties,
			&deviceType, &deviceBrowser, &deviceOS, &country, &city,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		event.UserID = userID.String
		event.OrganizationID = orgID.String
		event.SessionID = sessionID.String

		if len(properties) > 0 {
			if err := json.Unmarshal(properties, &event.Properties); err != nil {
				return nil, fmt.Errorf("unmarshal properties for event %s: %w", event.ID, err)
			}
		}

		if deviceType.Valid || country.Valid {
			event.Context = &analytics.EventContext{}
			if deviceType.Valid {
				event.Context.Device = &analytics.DeviceInfo{
					Type:    deviceType.String,
					Browser: deviceBrowser.String,
					OS:      deviceOS.String,
				}
			}
			if country.Valid {
				event.Context.Location = &analytics.LocationInfo{
					Country: country.String,
					City:    city.String,
				}
			}
		}

		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// nullString converts empty strings to NULL.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
