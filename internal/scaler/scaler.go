package scaler

import (
	"context"
	"errors"

	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

var (
	ErrScalingFailed   = errors.New("scaling operation failed")
	ErrInvalidTarget   = errors.New("invalid target capacity")
	ErrClusterNotFound = errors.New("cluster not found")
	ErrInstanceUnknown = errors.New("instance not found")
)

// Actuator accepts a target capacity and converges the running instance
// count toward it asynchronously. Returning nil means the request was
// accepted, not that the fleet has converged.
type Actuator interface {
	SetDesiredCapacity(ctx context.Context, clusterID string, target int) error

	// GetCapacity returns the desired capacity the actuator currently holds
	GetCapacity(ctx context.Context, clusterID string) (int, error)

	Close() error
}

// TagApplier is implemented by actuators that can annotate the cluster
// resource itself.
type TagApplier interface {
	ApplyTags(ctx context.Context, clusterID string, tags models.Tags) error
}
