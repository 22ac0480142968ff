package simulator

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

const SourceSimulator = "simulator"

type ClusterSimConfig struct {
	InitialInstances int
	// BaseLoad is the offered load in requests per minute across the cluster.
	BaseLoad float64
	// InstanceCapacity is the requests per minute one instance serves at
	// full CPU. Anything beyond is answered with a 5XX.
	InstanceCapacity float64
	IdleCPU          float64
	// ErrorRate is the fraction of served requests that fail regardless of
	// load.
	ErrorRate     float64
	Variance      float64
	ProvisionTime time.Duration
	Now           func() time.Time
}

func (c *ClusterSimConfig) setDefaults() {
	if c.InitialInstances <= 0 {
		c.InitialInstances = 3
	}
	if c.InstanceCapacity <= 0 {
		c.InstanceCapacity = 300000
	}
	if c.BaseLoad <= 0 {
		c.BaseLoad = float64(c.InitialInstances) * 120000
	}
	if c.IdleCPU <= 0 {
		c.IdleCPU = 5
	}
	if c.ErrorRate <= 0 {
		c.ErrorRate = 0.0001
	}
	if c.ProvisionTime == 0 {
		c.ProvisionTime = time.Minute
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// ClusterSim models an Imagizer cluster behind a load balancer. Offered load
// is spread evenly over the in-service instances; launched instances serve
// traffic once ProvisionTime has elapsed.
type ClusterSim struct {
	id        string
	config    ClusterSimConfig
	instances []*InstanceSim
	desired   int
	pattern   Pattern
	spike     *Spike
	burst     *ErrorBurst
	mu        sync.Mutex
}

type InstanceSim struct {
	ID         string               `json:"id"`
	State      models.InstanceState `json:"state"`
	LaunchedAt time.Time            `json:"launched_at"`
}

// Spike ramps the offered load to TargetLoad over RampUp and holds it for
// the rest of Duration.
type Spike struct {
	TargetLoad   float64
	StartTime    time.Time
	Duration     time.Duration
	RampUp       time.Duration
	OriginalLoad float64
}

// ErrorBurst adds ErrorsPerMinute 5XX responses for Duration.
type ErrorBurst struct {
	ErrorsPerMinute float64
	StartTime       time.Time
	Duration        time.Duration
}

type ClusterStatus struct {
	ID               string        `json:"id"`
	Desired          int           `json:"desired"`
	Pending          int           `json:"pending"`
	InService        int           `json:"in_service"`
	BaseLoad         float64       `json:"base_load"`
	CurrentLoad      float64       `json:"current_load"`
	InstanceCapacity float64       `json:"instance_capacity"`
	Pattern          string        `json:"pattern"`
	SpikeActive      bool          `json:"spike_active"`
	BurstActive      bool          `json:"burst_active"`
	Instances        []InstanceSim `json:"instances"`
}

func NewClusterSim(id string, cfg ClusterSimConfig) *ClusterSim {
	cfg.setDefaults()

	cluster := &ClusterSim{
		id:        id,
		config:    cfg,
		pattern:   PatternSteady,
		instances: make([]*InstanceSim, 0, cfg.InitialInstances),
		desired:   cfg.InitialInstances,
	}

	now := cfg.Now()
	for i := 0; i < cfg.InitialInstances; i++ {
		cluster.instances = append(cluster.instances, &InstanceSim{
			ID:         models.NewInstance(id).ID,
			State:      models.InstanceInService,
			LaunchedAt: now,
		})
	}

	return cluster
}

// advance moves pending instances into service once provisioned.
func (c *ClusterSim) advance(now time.Time) {
	for _, inst := range c.instances {
		if inst.State == models.InstancePending && now.Sub(inst.LaunchedAt) >= c.config.ProvisionTime {
			inst.State = models.InstanceInService
		}
	}
}

func (c *ClusterSim) inService() int {
	n := 0
	for _, inst := range c.instances {
		if inst.State == models.InstanceInService {
			n++
		}
	}
	return n
}

func (c *ClusterSim) currentLoad(now time.Time) float64 {
	load := c.pattern.Apply(c.config.BaseLoad, now)

	if c.spike != nil {
		elapsed := now.Sub(c.spike.StartTime)
		switch {
		case elapsed > c.spike.Duration:
			c.spike = nil
		case elapsed < c.spike.RampUp:
			progress := float64(elapsed) / float64(c.spike.RampUp)
			load = c.spike.OriginalLoad + (c.spike.TargetLoad-c.spike.OriginalLoad)*progress
		default:
			load = c.spike.TargetLoad
		}
	}

	return load
}

func (c *ClusterSim) burstErrors(now time.Time) float64 {
	if c.burst == nil {
		return 0
	}
	if now.Sub(c.burst.StartTime) > c.burst.Duration {
		c.burst = nil
		return 0
	}
	return c.burst.ErrorsPerMinute
}

// Sample returns one sample per metric for the minute ending now. A cluster
// with nothing in service only reports errors.
func (c *ClusterSim) Sample() models.SampleBatch {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.config.Now()
	c.advance(now)

	load := c.currentLoad(now)
	n := c.inService()
	errs := c.burstErrors(now)

	batch := models.SampleBatch{ClusterID: c.id, Timestamp: now}
	sample := func(name models.MetricName, value float64) {
		s := models.NewSample(c.id, name, round(value), now)
		s.Source = SourceSimulator
		batch.Samples = append(batch.Samples, s)
	}

	if n == 0 {
		sample(models.MetricHTTP5XXCount, load+errs)
		return batch
	}

	capacity := float64(n) * c.config.InstanceCapacity
	served := math.Min(load, capacity)
	perTarget := c.jitter(load / float64(n))
	utilization := math.Min(1, perTarget/c.config.InstanceCapacity)
	cpu := c.config.IdleCPU + (100-c.config.IdleCPU)*utilization

	sample(models.MetricCPUUtilization, math.Min(100, c.jitter(cpu)))
	sample(models.MetricRequestCountPerTarget, perTarget)
	sample(models.MetricHTTP5XXCount, (load-served)+served*c.config.ErrorRate+errs)

	return batch
}

func (c *ClusterSim) jitter(value float64) float64 {
	if c.config.Variance <= 0 {
		return value
	}
	value *= 1 + (rand.Float64()*2-1)*c.config.Variance
	if value < 0 {
		return 0
	}
	return value
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

// SetDesired launches or terminates instances to reach desired. Pending
// instances are terminated before in-service ones, newest first.
func (c *ClusterSim) SetDesired(desired int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if desired < 0 {
		desired = 0
	}
	now := c.config.Now()
	c.advance(now)
	c.desired = desired

	for len(c.instances) < desired {
		c.instances = append(c.instances, &InstanceSim{
			ID:         models.NewInstance(c.id).ID,
			State:      models.InstancePending,
			LaunchedAt: now,
		})
	}

	if over := len(c.instances) - desired; over > 0 {
		sort.SliceStable(c.instances, func(i, j int) bool {
			a, b := c.instances[i], c.instances[j]
			if a.State != b.State {
				return a.State == models.InstanceInService
			}
			return a.LaunchedAt.Before(b.LaunchedAt)
		})
		c.instances = c.instances[:desired]
	}
}

func (c *ClusterSim) Desired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desired
}

func (c *ClusterSim) InServiceCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance(c.config.Now())
	return c.inService()
}

func (c *ClusterSim) SetBaseLoad(load float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.BaseLoad = load
}

func (c *ClusterSim) SetVariance(variance float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.Variance = variance
}

func (c *ClusterSim) SetPattern(pattern Pattern) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pattern = pattern
}

func (c *ClusterSim) GetPattern() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pattern.Name()
}

func (c *ClusterSim) InjectSpike(targetLoad float64, duration, rampUp time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.config.Now()
	c.spike = &Spike{
		TargetLoad:   targetLoad,
		StartTime:    now,
		Duration:     duration,
		RampUp:       rampUp,
		OriginalLoad: c.pattern.Apply(c.config.BaseLoad, now),
	}
}

func (c *ClusterSim) InjectErrorBurst(errorsPerMinute float64, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.burst = &ErrorBurst{
		ErrorsPerMinute: errorsPerMinute,
		StartTime:       c.config.Now(),
		Duration:        duration,
	}
}

func (c *ClusterSim) Status() ClusterStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.config.Now()
	c.advance(now)

	status := ClusterStatus{
		ID:               c.id,
		Desired:          c.desired,
		BaseLoad:         c.config.BaseLoad,
		CurrentLoad:      round(c.currentLoad(now)),
		InstanceCapacity: c.config.InstanceCapacity,
		Pattern:          c.pattern.Name(),
		SpikeActive:      c.spike != nil,
		BurstActive:      c.burst != nil && now.Sub(c.burst.StartTime) <= c.burst.Duration,
		Instances:        make([]InstanceSim, 0, len(c.instances)),
	}
	for _, inst := range c.instances {
		if inst.State == models.InstancePending {
			status.Pending++
		} else {
			status.InService++
		}
		status.Instances = append(status.Instances, *inst)
	}
	return status
}
