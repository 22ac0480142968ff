package queries

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

type DecisionRepository struct {
	db *sql.DB
}

func NewDecisionRepository(db *sql.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

func (r *DecisionRepository) Insert(ctx context.Context, d *models.ScalingDecision) error {
	skipped, err := marshalSkipped(d.Skipped)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO decisions
			(cluster_id, timestamp, action, rule, reason, metric, observed_value,
			 proposed_delta, applied_delta, current_capacity, target_capacity, clamped, skipped)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.ExecContext(ctx, query,
		d.ClusterID,
		d.Timestamp,
		d.Action,
		d.Rule,
		d.Reason,
		d.Metric,
		d.ObservedValue,
		d.ProposedDelta,
		d.AppliedDelta,
		d.CurrentCapacity,
		d.TargetCapacity,
		d.Clamped,
		skipped,
	)
	return err
}

// GetByCluster returns decisions newest first. With actionsOnly set,
// NO_ACTION ticks are left out.
func (r *DecisionRepository) GetByCluster(ctx context.Context, clusterID string, from, to time.Time, actionsOnly bool, limit int) ([]models.ScalingDecision, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT cluster_id, timestamp, action, rule, reason, metric, observed_value,
			   proposed_delta, applied_delta, current_capacity, target_capacity, clamped, skipped
		FROM decisions
		WHERE cluster_id = $1 AND timestamp >= $2 AND timestamp <= $3
		  AND ($4 = false OR action <> 'NO_ACTION')
		ORDER BY timestamp DESC
		LIMIT $5`

	rows, err := r.db.QueryContext(ctx, query, clusterID, from, to, actionsOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []models.ScalingDecision
	for rows.Next() {
		var d models.ScalingDecision
		var action, metric string
		var skipped []byte
		err := rows.Scan(
			&d.ClusterID, &d.Timestamp, &action, &d.Rule, &d.Reason, &metric,
			&d.ObservedValue, &d.ProposedDelta, &d.AppliedDelta,
			&d.CurrentCapacity, &d.TargetCapacity, &d.Clamped, &skipped,
		)
		if err != nil {
			return nil, err
		}
		d.Action = models.ScalingAction(action)
		d.Metric = models.MetricName(metric)
		if len(skipped) > 0 {
			if err := json.Unmarshal(skipped, &d.Skipped); err != nil {
				return nil, err
			}
		}
		decisions = append(decisions, d)
	}

	return decisions, rows.Err()
}

func marshalSkipped(skipped []models.SkippedRule) ([]byte, error) {
	if skipped == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(skipped)
}
