package queries

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

const scalingEventColumns = `id, cluster_id, timestamp, action, rule, capacity_before, capacity_after,
	observed_value, reason, clamped, status, error, tags`

type ScalingEventRepository struct {
	db *sql.DB
}

func NewScalingEventRepository(db *sql.DB) *ScalingEventRepository {
	return &ScalingEventRepository{db: db}
}

func (r *ScalingEventRepository) GetByCluster(ctx context.Context, clusterID string, from, to time.Time, limit int) ([]models.ScalingEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + scalingEventColumns + `
		FROM scaling_events
		WHERE cluster_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp DESC
		LIMIT $4`

	rows, err := r.db.QueryContext(ctx, query, clusterID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanScalingEvents(rows)
}

func (r *ScalingEventRepository) GetRecent(ctx context.Context, limit int) ([]models.ScalingEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + scalingEventColumns + `
		FROM scaling_events
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanScalingEvents(rows)
}

func (r *ScalingEventRepository) GetStats(ctx context.Context, clusterID string, from, to time.Time) (*ScalingStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE action = 'SCALE_OUT') AS scale_out_count,
			COUNT(*) FILTER (WHERE action = 'SCALE_IN') AS scale_in_count,
			COUNT(*) FILTER (WHERE status = 'success') AS success_count,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed_count,
			COUNT(*) FILTER (WHERE clamped = true) AS clamped_count
		FROM scaling_events
		WHERE cluster_id = $1 AND timestamp >= $2 AND timestamp <= $3`

	var stats ScalingStats
	err := r.db.QueryRowContext(ctx, query, clusterID, from, to).Scan(
		&stats.ScaleOutCount, &stats.ScaleInCount,
		&stats.SuccessCount, &stats.FailedCount, &stats.ClampedCount,
	)
	if err != nil {
		return nil, err
	}

	stats.ClusterID = clusterID
	stats.From = from
	stats.To = to

	return &stats, nil
}

func (r *ScalingEventRepository) Insert(ctx context.Context, event *models.ScalingEvent) error {
	tags, err := marshalTags(event.Tags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scaling_events
			(cluster_id, timestamp, action, rule, capacity_before, capacity_after,
			 observed_value, reason, clamped, status, error, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	return r.db.QueryRowContext(ctx, query,
		event.ClusterID,
		event.Timestamp,
		event.Action,
		event.Rule,
		event.CapacityBefore,
		event.CapacityAfter,
		event.ObservedValue,
		event.Reason,
		event.Clamped,
		event.Status,
		event.Error,
		tags,
	).Scan(&event.ID)
}

type ScalingStats struct {
	ClusterID     string    `json:"cluster_id"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	ScaleOutCount int       `json:"scale_out_count"`
	ScaleInCount  int       `json:"scale_in_count"`
	SuccessCount  int       `json:"success_count"`
	FailedCount   int       `json:"failed_count"`
	ClampedCount  int       `json:"clamped_count"`
}

func marshalTags(tags models.Tags) ([]byte, error) {
	if tags == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(tags)
}

func scanScalingEvents(rows *sql.Rows) ([]models.ScalingEvent, error) {
	var events []models.ScalingEvent
	for rows.Next() {
		var e models.ScalingEvent
		var action, status string
		var tags []byte
		err := rows.Scan(
			&e.ID, &e.ClusterID, &e.Timestamp, &action, &e.Rule,
			&e.CapacityBefore, &e.CapacityAfter, &e.ObservedValue,
			&e.Reason, &e.Clamped, &status, &e.Error, &tags,
		)
		if err != nil {
			return nil, err
		}
		e.Action = models.ScalingAction(action)
		e.Status = models.ScalingEventStatus(status)
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &e.Tags); err != nil {
				return nil, err
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
