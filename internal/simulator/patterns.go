package simulator

import (
	"math"
	"math/rand"
	"time"
)

// Pattern shapes the offered load over time. Apply returns the load to use at
// now given the configured base load.
type Pattern interface {
	Apply(baseLoad float64, now time.Time) float64
	Name() string
}

var (
	PatternSteady Pattern = &SteadyPattern{}
	PatternDaily  Pattern = &DailyPattern{}
	PatternWeekly Pattern = &WeeklyPattern{}
	PatternRandom Pattern = &RandomPattern{}
)

func ParsePattern(name string, now time.Time) Pattern {
	switch name {
	case "daily":
		return PatternDaily
	case "weekly":
		return PatternWeekly
	case "random":
		return PatternRandom
	case "gradual_rise":
		return &GradualRisePattern{StartTime: now}
	case "sine_wave":
		return &SineWavePattern{}
	default:
		return PatternSteady
	}
}

// SteadyPattern - constant load
type SteadyPattern struct{}

func (p *SteadyPattern) Apply(baseLoad float64, now time.Time) float64 {
	return baseLoad
}

func (p *SteadyPattern) Name() string {
	return "steady"
}

func dailyModifier(hour int) float64 {
	switch {
	case hour >= 9 && hour <= 11:
		return 1.4
	case hour >= 14 && hour <= 16:
		return 1.3
	case hour >= 17 && hour <= 20:
		return 1.1
	case hour >= 0 && hour <= 6:
		return 0.6
	default:
		return 1.0
	}
}

// DailyPattern - business hours peak, quiet nights
type DailyPattern struct{}

func (p *DailyPattern) Apply(baseLoad float64, now time.Time) float64 {
	return baseLoad * dailyModifier(now.Hour())
}

func (p *DailyPattern) Name() string {
	return "daily"
}

// WeeklyPattern - daily cycle on weekdays, half load on weekends
type WeeklyPattern struct{}

func (p *WeeklyPattern) Apply(baseLoad float64, now time.Time) float64 {
	weekday := now.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return baseLoad * 0.5
	}
	return baseLoad * dailyModifier(now.Hour())
}

func (p *WeeklyPattern) Name() string {
	return "weekly"
}

// RandomPattern - between half and one and a half times the base load
type RandomPattern struct{}

func (p *RandomPattern) Apply(baseLoad float64, now time.Time) float64 {
	return baseLoad * (0.5 + rand.Float64())
}

func (p *RandomPattern) Name() string {
	return "random"
}

// GradualRisePattern - 2% more load per minute, up to double
type GradualRisePattern struct {
	StartTime time.Time
}

func (p *GradualRisePattern) Apply(baseLoad float64, now time.Time) float64 {
	minutes := now.Sub(p.StartTime).Minutes()
	if minutes < 0 {
		minutes = 0
	}
	increasePercent := math.Min(minutes*2, 100)
	return baseLoad * (1.0 + increasePercent/100)
}

func (p *GradualRisePattern) Name() string {
	return "gradual_rise"
}

// SineWavePattern - smooth oscillation of Amplitude (a fraction of the base
// load) over Period
type SineWavePattern struct {
	Period    time.Duration
	Amplitude float64
}

func (p *SineWavePattern) Apply(baseLoad float64, now time.Time) float64 {
	period := p.Period
	if period == 0 {
		period = 30 * time.Minute
	}
	amplitude := p.Amplitude
	if amplitude == 0 {
		amplitude = 0.3
	}

	phase := float64(now.UnixNano()) / float64(period.Nanoseconds()) * 2 * math.Pi
	result := baseLoad * (1 + math.Sin(phase)*amplitude)
	if result < 0 {
		result = 0
	}
	return result
}

func (p *SineWavePattern) Name() string {
	return "sine_wave"
}
