package scaler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/aws/aws-sdk-go/service/autoscaling/autoscalingiface"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/internal/resilience"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

// ASGScaler drives EC2 Auto Scaling groups. Cool-downs are enforced by the
// evaluator, so requests never honor the group cooldown.
type ASGScaler struct {
	client  autoscalingiface.AutoScalingAPI
	groups  map[string]string // clusterID -> ASG name
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	mu      sync.RWMutex
}

type ASGScalerConfig struct {
	Client        autoscalingiface.AutoScalingAPI
	Groups        map[string]string
	RetryAttempts int
	RetryDelay    time.Duration
	OnStateChange func(name string, from, to resilience.State)
}

func NewASGScaler(cfg ASGScalerConfig) *ASGScaler {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	groups := make(map[string]string, len(cfg.Groups))
	for id, name := range cfg.Groups {
		groups[id] = name
	}

	return &ASGScaler{
		client: cfg.Client,
		groups: groups,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:          "autoscaling",
			OnStateChange: cfg.OnStateChange,
		}),
		retry: resilience.RetryConfig{
			Attempts: cfg.RetryAttempts,
			Delay:    cfg.RetryDelay,
		},
	}
}

func (s *ASGScaler) group(clusterID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name, ok := s.groups[clusterID]
	if !ok {
		return "", fmt.Errorf("%w: no auto scaling group for %s", ErrClusterNotFound, clusterID)
	}
	return name, nil
}

func (s *ASGScaler) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, s.retry, func(ctx context.Context) error {
			return classify(fn(ctx))
		})
	})
}

// classify marks validation errors as permanent so they are not retried.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == "ValidationError" {
		return fmt.Errorf("%w: %v", resilience.ErrPermanent, err)
	}
	return err
}

func (s *ASGScaler) SetDesiredCapacity(ctx context.Context, clusterID string, target int) error {
	if target < 0 {
		return ErrInvalidTarget
	}
	name, err := s.group(clusterID)
	if err != nil {
		return err
	}

	err = s.call(ctx, func(ctx context.Context) error {
		_, err := s.client.SetDesiredCapacityWithContext(ctx, &autoscaling.SetDesiredCapacityInput{
			AutoScalingGroupName: aws.String(name),
			DesiredCapacity:      aws.Int64(int64(target)),
			HonorCooldown:        aws.Bool(false),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: set desired capacity of %s to %d: %v", ErrScalingFailed, name, target, err)
	}

	logger.WithCluster(clusterID).Infof("Requested desired capacity %d for %s", target, name)
	return nil
}

func (s *ASGScaler) describe(ctx context.Context, name string) (*autoscaling.Group, error) {
	var group *autoscaling.Group

	err := s.call(ctx, func(ctx context.Context) error {
		out, err := s.client.DescribeAutoScalingGroupsWithContext(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
			AutoScalingGroupNames: []*string{aws.String(name)},
		})
		if err != nil {
			return err
		}
		if len(out.AutoScalingGroups) == 0 {
			return fmt.Errorf("%w: auto scaling group %s", resilience.ErrPermanent, name)
		}
		group = out.AutoScalingGroups[0]
		return nil
	})

	return group, err
}

func (s *ASGScaler) GetCapacity(ctx context.Context, clusterID string) (int, error) {
	name, err := s.group(clusterID)
	if err != nil {
		return 0, err
	}

	group, err := s.describe(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("describe %s: %w", name, err)
	}
	return int(aws.Int64Value(group.DesiredCapacity)), nil
}

// FleetState reports the lifecycle states of the group's instances.
func (s *ASGScaler) FleetState(ctx context.Context, clusterID string) (models.FleetState, error) {
	name, err := s.group(clusterID)
	if err != nil {
		return models.FleetState{}, err
	}

	group, err := s.describe(ctx, name)
	if err != nil {
		return models.FleetState{}, fmt.Errorf("describe %s: %w", name, err)
	}

	state := models.FleetState{
		ClusterID: clusterID,
		Desired:   int(aws.Int64Value(group.DesiredCapacity)),
	}
	for _, instance := range group.Instances {
		switch aws.StringValue(instance.LifecycleState) {
		case autoscaling.LifecycleStatePending, autoscaling.LifecycleStatePendingWait, autoscaling.LifecycleStatePendingProceed:
			state.Pending++
		case autoscaling.LifecycleStateInService:
			state.InService++
		case autoscaling.LifecycleStateTerminating, autoscaling.LifecycleStateTerminatingWait, autoscaling.LifecycleStateTerminatingProceed:
			state.Terminating++
		}
	}
	return state, nil
}

// ApplyTags writes tags on the group and propagates them to instances
// launched from now on.
func (s *ASGScaler) ApplyTags(ctx context.Context, clusterID string, tags models.Tags) error {
	name, err := s.group(clusterID)
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		return nil
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	input := &autoscaling.CreateOrUpdateTagsInput{}
	for _, k := range keys {
		input.Tags = append(input.Tags, &autoscaling.Tag{
			Key:               aws.String(k),
			Value:             aws.String(tags[k]),
			ResourceId:        aws.String(name),
			ResourceType:      aws.String("auto-scaling-group"),
			PropagateAtLaunch: aws.Bool(true),
		})
	}

	err = s.call(ctx, func(ctx context.Context) error {
		_, err := s.client.CreateOrUpdateTagsWithContext(ctx, input)
		return err
	})
	if err != nil {
		return fmt.Errorf("tag %s: %w", name, err)
	}

	logger.WithCluster(clusterID).Infof("Applied %d tags to %s", len(keys), name)
	return nil
}

func (s *ASGScaler) Close() error {
	return nil
}
