package queries

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

var ErrClusterNotFound = errors.New("cluster not found")

const clusterColumns = `id, name, min_capacity, max_capacity, status, config, last_scale_time, created_at, updated_at`

type ClusterRepository struct {
	db *sql.DB
}

func NewClusterRepository(db *sql.DB) *ClusterRepository {
	return &ClusterRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ClusterRepository) GetAll(ctx context.Context) ([]*models.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clusters []*models.Cluster
	for rows.Next() {
		cluster, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, cluster)
	}

	return clusters, rows.Err()
}

func (r *ClusterRepository) GetByID(ctx context.Context, id string) (*models.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters WHERE id = $1`

	cluster, err := scanCluster(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClusterNotFound
	}
	return cluster, err
}

// Upsert registers a configured cluster, refreshing its bounds and wiring
// when it already exists.
func (r *ClusterRepository) Upsert(ctx context.Context, cluster *models.Cluster) error {
	configJSON, err := cluster.ConfigJSON()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO clusters (id, name, min_capacity, max_capacity, status, config)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			min_capacity = EXCLUDED.min_capacity,
			max_capacity = EXCLUDED.max_capacity,
			status = EXCLUDED.status,
			config = EXCLUDED.config,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		cluster.ID,
		cluster.Name,
		cluster.MinCapacity,
		cluster.MaxCapacity,
		cluster.Status,
		configJSON,
	).Scan(&cluster.CreatedAt, &cluster.UpdatedAt)
}

func (r *ClusterRepository) UpdateStatus(ctx context.Context, id string, status models.ClusterStatus) error {
	query := `UPDATE clusters SET status = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id, status)
}

func (r *ClusterRepository) TouchLastScale(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE clusters SET last_scale_time = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id, at)
}

func (r *ClusterRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM clusters WHERE id = $1`, id)
}

func (r *ClusterRepository) GetActiveCount(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM clusters WHERE status = 'active'`
	var count int
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func (r *ClusterRepository) execOne(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrClusterNotFound
	}
	return nil
}

func scanCluster(row rowScanner) (*models.Cluster, error) {
	var cluster models.Cluster
	var configJSON []byte
	var status string
	var lastScale sql.NullTime

	err := row.Scan(
		&cluster.ID,
		&cluster.Name,
		&cluster.MinCapacity,
		&cluster.MaxCapacity,
		&status,
		&configJSON,
		&lastScale,
		&cluster.CreatedAt,
		&cluster.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cluster.Status = models.ClusterStatus(status)
	if lastScale.Valid {
		cluster.LastScaleTime = &lastScale.Time
	}
	if err := cluster.ParseConfig(configJSON); err != nil {
		return nil, err
	}

	return &cluster, nil
}
