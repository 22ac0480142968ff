package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cloudwatch/cloudwatchiface"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

const SourceCloudWatch = "cloudwatch"

const (
	queryCPU      = "cpu"
	queryRequests = "requests"
	queryErrors   = "errors5xx"
)

// loadBalancerPeriod is the period of the per-minute ALB counters.
const loadBalancerPeriod = time.Minute

// CloudWatchTarget names the AWS resources behind one cluster. Empty fields
// disable the corresponding metric.
type CloudWatchTarget struct {
	AutoScalingGroupName string
	LoadBalancer         string
	TargetGroup          string
}

type CloudWatchCollectorConfig struct {
	Client   cloudwatchiface.CloudWatchAPI
	Targets  map[string]CloudWatchTarget
	Period   time.Duration
	Lookback time.Duration
	Now      func() time.Time
}

// CloudWatchCollector reads CPU, request count per target and target 5XX
// counts with a single GetMetricData call per cluster. CloudWatch labels a
// datapoint with the start of its period; samples carry the period end, the
// moment the value became complete, so a window ending now covers whole
// periods.
type CloudWatchCollector struct {
	client   cloudwatchiface.CloudWatchAPI
	targets  map[string]CloudWatchTarget
	period   time.Duration
	lookback time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

func NewCloudWatchCollector(cfg CloudWatchCollectorConfig) *CloudWatchCollector {
	if cfg.Period < time.Minute {
		cfg.Period = time.Minute
	}
	// CloudWatch periods are multiples of 60 seconds
	cfg.Period = cfg.Period.Truncate(time.Minute)
	if cfg.Lookback == 0 {
		cfg.Lookback = 20 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	targets := make(map[string]CloudWatchTarget, len(cfg.Targets))
	for id, t := range cfg.Targets {
		targets[id] = t
	}

	return &CloudWatchCollector{
		client:   cfg.Client,
		targets:  targets,
		period:   cfg.Period,
		lookback: cfg.Lookback,
		now:      cfg.Now,
	}
}

func (c *CloudWatchCollector) SetTarget(clusterID string, target CloudWatchTarget) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets[clusterID] = target
}

func (c *CloudWatchCollector) Collect(ctx context.Context, clusterID string) ([]models.MetricSample, error) {
	c.mu.RLock()
	target, ok := c.targets[clusterID]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrClusterNotFound
	}

	queries := c.queries(target)
	if len(queries) == 0 {
		return nil, nil
	}

	end := c.now().UTC().Truncate(time.Minute)
	input := &cloudwatch.GetMetricDataInput{
		MetricDataQueries: queries,
		StartTime:         aws.Time(end.Add(-c.lookback)),
		EndTime:           aws.Time(end),
		ScanBy:            aws.String(cloudwatch.ScanByTimestampAscending),
	}

	var samples []models.MetricSample
	for {
		out, err := c.client.GetMetricDataWithContext(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: cloudwatch: %v", ErrCollectionFailed, err)
		}

		for _, result := range out.MetricDataResults {
			samples = append(samples, c.convert(clusterID, result)...)
		}

		if out.NextToken == nil || *out.NextToken == "" {
			break
		}
		input.NextToken = out.NextToken
	}

	logger.WithCluster(clusterID).Debugf("Collected %d samples from CloudWatch", len(samples))

	return samples, nil
}

func (c *CloudWatchCollector) queries(t CloudWatchTarget) []*cloudwatch.MetricDataQuery {
	period := aws.Int64(int64(c.period.Seconds()))
	var queries []*cloudwatch.MetricDataQuery

	if t.AutoScalingGroupName != "" {
		queries = append(queries, &cloudwatch.MetricDataQuery{
			Id: aws.String(queryCPU),
			MetricStat: &cloudwatch.MetricStat{
				Metric: &cloudwatch.Metric{
					Namespace:  aws.String("AWS/EC2"),
					MetricName: aws.String("CPUUtilization"),
					Dimensions: []*cloudwatch.Dimension{
						{Name: aws.String("AutoScalingGroupName"), Value: aws.String(t.AutoScalingGroupName)},
					},
				},
				Period: period,
				Stat:   aws.String(cloudwatch.StatisticAverage),
			},
		})
	}

	if t.LoadBalancer != "" && t.TargetGroup != "" {
		queries = append(queries, &cloudwatch.MetricDataQuery{
			Id: aws.String(queryRequests),
			MetricStat: &cloudwatch.MetricStat{
				Metric: &cloudwatch.Metric{
					Namespace:  aws.String("AWS/ApplicationELB"),
					MetricName: aws.String("RequestCountPerTarget"),
					Dimensions: []*cloudwatch.Dimension{
						{Name: aws.String("LoadBalancer"), Value: aws.String(t.LoadBalancer)},
						{Name: aws.String("TargetGroup"), Value: aws.String(t.TargetGroup)},
					},
				},
				Period: aws.Int64(int64(loadBalancerPeriod.Seconds())),
				Stat:   aws.String(cloudwatch.StatisticSum),
			},
		})
	}

	if t.LoadBalancer != "" {
		queries = append(queries, &cloudwatch.MetricDataQuery{
			Id: aws.String(queryErrors),
			MetricStat: &cloudwatch.MetricStat{
				Metric: &cloudwatch.Metric{
					Namespace:  aws.String("AWS/ApplicationELB"),
					MetricName: aws.String("HTTPCode_Target_5XX_Count"),
					Dimensions: []*cloudwatch.Dimension{
						{Name: aws.String("LoadBalancer"), Value: aws.String(t.LoadBalancer)},
					},
				},
				Period: aws.Int64(int64(loadBalancerPeriod.Seconds())),
				Stat:   aws.String(cloudwatch.StatisticSum),
			},
		})
	}

	return queries
}

func (c *CloudWatchCollector) convert(clusterID string, result *cloudwatch.MetricDataResult) []models.MetricSample {
	var name models.MetricName
	period := loadBalancerPeriod
	switch aws.StringValue(result.Id) {
	case queryCPU:
		name = models.MetricCPUUtilization
		period = c.period
	case queryRequests:
		name = models.MetricRequestCountPerTarget
	case queryErrors:
		name = models.MetricHTTP5XXCount
	default:
		return nil
	}

	n := len(result.Values)
	if len(result.Timestamps) < n {
		n = len(result.Timestamps)
	}

	samples := make([]models.MetricSample, 0, n)
	for i := 0; i < n; i++ {
		if result.Values[i] == nil || result.Timestamps[i] == nil {
			continue
		}
		s := models.NewSample(clusterID, name, *result.Values[i], result.Timestamps[i].Add(period))
		s.Source = SourceCloudWatch
		samples = append(samples, s)
	}
	return samples
}

func (c *CloudWatchCollector) HealthCheck(ctx context.Context) error {
	_, err := c.client.ListMetricsWithContext(ctx, &cloudwatch.ListMetricsInput{
		Namespace:  aws.String("AWS/EC2"),
		MetricName: aws.String("CPUUtilization"),
	})
	if err != nil {
		return fmt.Errorf("cloudwatch health check failed: %w", err)
	}
	return nil
}

func (c *CloudWatchCollector) Close() error {
	return nil
}
