package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/platinummonkey/pulse/pkg/analytics"
)

func TestNewEventStore(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	store := NewEventStore(db)
	if store == nil {
		t.Fatal("Expected non-nil EventStore")
	}
	if store.db != db {
		t.Error("Expected EventStore to store the database reference")
	}
}

func TestInsertEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	store := NewEventStore(db)

	now := time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name  string
		event analytics.Event
	}{
		{
			name: "event with all fields",
			event: analytics.Event{
				ID:             "evt-1",
				EventType:      "page_view",
				UserID:         "user-1",
				OrganizationID: "org-1",
				SessionID:      "sess-1",
				Timestamp:      now,
				Properties:     map[string]interface{}{"page": "/dashboard"},
				Context: &analytics.EventContext{
					Device:   &analytics.DeviceInfo{Type: "desktop", Browser: "firefox", OS: "linux"},
					Location: &analytics.LocationInfo{Country: "US", City: "Portland"},
				},
			},
		},
		{
			name: "anonymous event without context",
			event: analytics.Event{
				ID:        "evt-2",
				EventType: "api_call",
				Timestamp: now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectExec("INSERT INTO analytics_events").
				WithArgs(
					tt.event.ID,
					tt.event.EventType,
					sqlmock.AnyArg(), // nullString(UserID)
					sqlmock.AnyArg(), // nullString(OrganizationID)
					sqlmock.AnyArg(), // nullString(SessionID)
					tt.event.Timestamp,
					sqlmock.AnyArg(), // properties JSON (may be nil)
					sqlmock.AnyArg(), // nullString(device type)
					sqlmock.AnyArg(), // nullString(device browser)
					sqlmock.AnyArg(), // nullString(device os)
					sqlmock.AnyArg(), // nullString(country)
					sqlmock.AnyArg(), // nullString(city)
				).
				WillReturnResult(sqlmock.NewResult(1, 1))

			err := store.InsertEvent(context.Background(), tt.event)
			if err != nil {
				t.Errorf("InsertEvent failed: %v", err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("Unmet expectations: %v", err)
			}
		})
	}
}

func TestInsertEventError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	store := NewEventStore(db)

	mock.ExpectExec("INSERT INTO analytics_events").
		WillReturnError(sql.ErrConnDone)

	err = store.InsertEvent(context.Background(), analytics.Event{
		ID:        "evt-err",
		EventType: "page_view",
		Timestamp: time.Now(),
	})
	if err == nil {
		t.Error("Expected error from InsertEvent, got nil")
	}
	if !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("Expected wrapped sql.ErrConnDone, got %v", err)
	}
}

func TestGetEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	store := NewEventStore(db)

	occurred := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	columns := []string{
		"id", "event_type", "user_id", "organization_id", "session_id",
		"occurred_at", "properties",
		"device_type", "device_browser", "device_os", "country", "city",
	}
	rows := sqlmock.NewRows(columns).
		AddRow("evt-1", "page_view", "user-1", "org-1", "sess-1",
			occurred, []byte(`{"page":"/home"}`),
			"mobile", "safari", "ios", "US", "Austin").
		AddRow("evt-2", "api_call", nil, nil, nil,
			occurred.Add(time.Minute), nil,
			nil, nil, nil, nil, nil)

	mock.ExpectQuery("SELECT .* FROM analytics_events").
		WithArgs("page_view", "user-1").
		WillReturnRows(rows)

	events, err := store.GetEvents(context.Background(), analytics.EventFilter{
		EventType: "page_view",
		UserID:    "user-1",
	})
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}

	first := events[0]
	if first.ID != "evt-1" || first.UserID != "user-1" || first.SessionID != "sess-1" {
		t.Errorf("Unexpected first event: %+v", first)
	}
	if first.Properties["page"] != "/home" {
		t.Errorf("Expected properties to round-trip, got %v", first.Properties)
	}
	if first.Context == nil || first.Context.Device == nil || first.Context.Device.Browser != "safari" {
		t.Errorf("Expected device context, got %+v", first.Context)
	}
	if first.Context.Location == nil || first.Context.Location.City != "Austin" {
		t.Errorf("Expected location context, got %+v", first.Context)
	}

	second := events[1]
	if second.UserID != "" || second.Context != nil || second.Properties != nil {
		t.Errorf("Expected bare event, got %+v", second)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestGetEventsTimeBounds(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	store := NewEventStore(db)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .* FROM analytics_events").
		WithArgs("org-9", start, end).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "event_type", "user_id", "organization_id", "session_id",
			"occurred_at", "properties",
			"device_type", "device_browser", "device_os", "country", "city",
		}))

	events, err := store.GetEvents(context.Background(), analytics.EventFilter{
		OrganizationID: "org-9",
		Start:          start,
		End:            end,
	})
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no events, got %d", len(events))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestGetEventsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	store := NewEventStore(db)

	mock.ExpectQuery("SELECT .* FROM analytics_events").
		WillReturnError(sql.ErrConnDone)

	_, err = store.GetEvents(context.Background(), analytics.EventFilter{})
	if err == nil {
		t.Error("Expected error from GetEvents, got nil")
	}
	if !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("Expected wrapped sql.ErrConnDone, got %v", err)
	}
}

func TestNullString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected interface{}
	}{
		{
			name:     "empty string returns nil",
			input:    "",
			expected: nil,
		},
		{
			name:     "non-empty string returns string",
			input:    "test",
			expected: "test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := nullString(tt.input)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}
