package queries

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

type MetricsRepository struct {
	db *sql.DB
}

func NewMetricsRepository(db *sql.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

type AggregatedMetricPoint struct {
	Time        time.Time `json:"time"`
	ClusterID   string    `json:"cluster_id"`
	Name        string    `json:"name"`
	Avg         float64   `json:"avg"`
	Sum         float64   `json:"sum"`
	Max         float64   `json:"max"`
	Min         float64   `json:"min"`
	SampleCount int       `json:"sample_count"`
}

func (r *MetricsRepository) GetRaw(ctx context.Context, clusterID string, name models.MetricName, from, to time.Time, limit int) ([]models.MetricRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT time, cluster_id, name, value, source
		FROM metric_samples
		WHERE cluster_id = $1 AND name = $2 AND time >= $3 AND time <= $4
		ORDER BY time DESC
		LIMIT $5`

	rows, err := r.db.QueryContext(ctx, query, clusterID, string(name), from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.MetricRecord
	for rows.Next() {
		var m models.MetricRecord
		if err := rows.Scan(&m.Time, &m.ClusterID, &m.Name, &m.Value, &m.Source); err != nil {
			return nil, err
		}
		records = append(records, m)
	}

	return records, rows.Err()
}

// GetAggregated buckets samples of one metric into fixed windows.
func (r *MetricsRepository) GetAggregated(ctx context.Context, clusterID string, name models.MetricName, from, to time.Time, bucket time.Duration) ([]AggregatedMetricPoint, error) {
	if bucket <= 0 {
		bucket = 5 * time.Minute
	}

	query := `
		SELECT
			date_bin($5::interval, time, TIMESTAMPTZ 'epoch') AS bucket,
			cluster_id,
			name,
			AVG(value),
			SUM(value),
			MAX(value),
			MIN(value),
			COUNT(*)
		FROM metric_samples
		WHERE cluster_id = $1 AND name = $2 AND time >= $3 AND time <= $4
		GROUP BY bucket, cluster_id, name
		ORDER BY bucket DESC`

	interval := fmt.Sprintf("%d seconds", int(bucket.Seconds()))
	rows, err := r.db.QueryContext(ctx, query, clusterID, string(name), from, to, interval)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []AggregatedMetricPoint
	for rows.Next() {
		var p AggregatedMetricPoint
		err := rows.Scan(&p.Time, &p.ClusterID, &p.Name, &p.Avg, &p.Sum, &p.Max, &p.Min, &p.SampleCount)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}

	return points, rows.Err()
}

func (r *MetricsRepository) InsertBatch(ctx context.Context, samples []models.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metric_samples (time, cluster_id, name, value, source)
		VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		m := s.Record()
		if _, err := stmt.ExecContext(ctx, m.Time, m.ClusterID, m.Name, m.Value, m.Source); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteBefore prunes samples older than cutoff and returns the number removed.
func (r *MetricsRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM metric_samples WHERE time < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
