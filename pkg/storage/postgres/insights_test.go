package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/platinummonkey/pulse/pkg/analytics"
)

func TestCreateInsight(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	store := NewInsightStore(db)

	draft := analytics.InsightDraft{
		Severity:        analytics.SeverityWarning,
		Title:           "Anomalous spike in page_view",
		Description:     "Event volume deviates from the recent baseline",
		Data:            map[string]interface{}{"z_score": 3.4},
		AffectedMetrics: []string{"page_view"},
		Recommendations: []string{"Check recent deploys"},
	}

	mock.ExpectExec("INSERT INTO insights").
		WithArgs(
			sqlmock.AnyArg(), // generated ID
			"event_anomaly",
			"org-1",
			string(analytics.SeverityWarning),
			draft.Title,
			draft.Description,
			sqlmock.AnyArg(), // data JSON
			sqlmock.AnyArg(), // affected metrics JSON
			sqlmock.AnyArg(), // recommendations JSON
			sqlmock.AnyArg(), // created_at
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	insight, err := store.CreateInsight(context.Background(), "event_anomaly", draft, "org-1")
	if err != nil {
		t.Fatalf("CreateInsight failed: %v", err)
	}
	if insight.ID == "" {
		t.Error("Expected a generated insight ID")
	}
	if insight.DefinitionID != "event_anomaly" {
		t.Errorf("Expected definition ID to carry over, got %q", insight.DefinitionID)
	}
	if insight.OrganizationID != "org-1" {
		t.Errorf("Expected organization ID to carry over, got %q", insight.OrganizationID)
	}
	if insight.Severity != analytics.SeverityWarning {
		t.Errorf("Expected warning severity, got %q", insight.Severity)
	}
	if insight.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestCreateInsightUniqueIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	store := NewInsightStore(db)

	draft := analytics.InsightDraft{
		Severity: analytics.SeverityInfo,
		Title:    "Sudden change in signups",
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO insights").
			WillReturnResult(sqlmock.NewResult(1, 1))

		insight, err := store.CreateInsight(context.Background(), "sudden_change", draft, "")
		if err != nil {
			t.Fatalf("CreateInsight failed: %v", err)
		}
		if seen[insight.ID] {
			t.Errorf("Duplicate insight ID %q", insight.ID)
		}
		seen[insight.ID] = true
	}
}

func TestCreateInsightError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	store := NewInsightStore(db)

	mock.ExpectExec("INSERT INTO insights").
		WillReturnError(sql.ErrConnDone)

	_, err = store.CreateInsight(context.Background(), "threshold_violation", analytics.InsightDraft{
		Severity: analytics.SeverityCritical,
		Title:    "Error rate over budget",
	}, "org-2")
	if err == nil {
		t.Error("Expected error from CreateInsight, got nil")
	}
	if !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("Expected wrapped sql.ErrConnDone, got %v", err)
	}
}
