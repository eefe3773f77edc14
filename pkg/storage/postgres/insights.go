package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/pulse/pkg/analytics"
)

// InsightStore persists detected insights. It implements
// analytics.InsightCreator.
type InsightStore struct {
	db *sql.DB
}

// NewInsightStore creates an insight store over db.
func NewInsightStore(db *sql.DB) *InsightStore {
	return &InsightStore{db: db}
}

// CreateInsight assigns a fresh ID and persists the draft.
func (s *InsightStore) CreateInsight(ctx context.Context, definitionID string, draft analytics.InsightDraft, organizationID string) (*analytics.Insight, error) {
	insight := &analytics.Insight{
		ID:              uuid.NewString(),
		DefinitionID:    definitionID,
		OrganizationID:  organizationID,
		Severity:        draft.Severity,
		Title:           draft.Title,
		Description:     draft.Description,
		Data:            draft.Data,
		AffectedMetrics: draft.AffectedMetrics,
		Recommendations: draft.Recommendations,
		CreatedAt:       time.Now().UTC(),
	}

	var data interface{}
	if len(insight.Data) > 0 {
		encoded, err := json.Marshal(insight.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal insight data: %w", err)
		}
		data = encoded
	}
	var affected interface{}
	if len(insight.AffectedMetrics) > 0 {
		encoded, _ := json.Marshal(insight.AffectedMetrics)
		affected = encoded
	}
	var recommendations interface{}
	if len(insight.Recommendations) > 0 {
		encoded, _ := json.Marshal(insight.Recommendations)
		recommendations = encoded
	}

	query := `
		INSERT INTO insights (
			id, definition_id, organization_id, severity, title,
			description, data, affected_metrics, recommendations, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		insight.ID, nullString(definitionID), nullString(organizationID),
		string(insight.Severity), insight.Title, insight.Description,
		data, affected, recommendations, insight.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert insight: %w", err)
	}

	return insight, nil
}

var _ analytics.InsightCreator = (*InsightStore)(nil)
