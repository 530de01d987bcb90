// Package config defines the validated inputs of the queueing engine and loads
// them from YAML.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/queueing-sim/sim/dist"
)

// DefaultSeed is used when a configuration does not set one.
const DefaultSeed int64 = 42

// Discipline selects how the wait list is ordered.
type Discipline string

const (
	DisciplineFIFO       Discipline = "fifo"
	DisciplinePriority   Discipline = "priority"   // non-preemptive priority classes
	DisciplinePreemptive Discipline = "preemptive" // preemptive-resume priority classes
)

// ThreadingPolicy names a resource contention sub-model.
type ThreadingPolicy string

const (
	ThreadingDedicated ThreadingPolicy = "dedicated"
	ThreadingShared    ThreadingPolicy = "shared"
)

// QueueConfig describes one multi-server queue.
//
// The service process is Service when set, otherwise Exponential(ServiceRate).
// Capacity K > 0 bounds the number in system (waiting plus in service);
// such configurations tolerate utilization >= 1 because blocking bounds the queue.
type QueueConfig struct {
	Name        string     `yaml:"name,omitempty" json:"name,omitempty"`
	ArrivalRate float64    `yaml:"arrival_rate" json:"arrival_rate" validate:"gt=0"`
	Servers     int        `yaml:"servers" json:"servers" validate:"gte=1"`
	ServiceRate float64    `yaml:"service_rate,omitempty" json:"service_rate,omitempty" validate:"gte=0"`
	Service     *dist.Spec `yaml:"service,omitempty" json:"service,omitempty"`
	// ArrivalCV2 is the squared coefficient of variation of inter-arrival
	// times used by the M/G/N approximations. Zero means Poisson (1).
	ArrivalCV2 float64 `yaml:"arrival_cv2,omitempty" json:"arrival_cv2,omitempty" validate:"gte=0"`

	Capacity   int           `yaml:"capacity,omitempty" json:"capacity,omitempty" validate:"gte=0"`
	Discipline Discipline    `yaml:"discipline,omitempty" json:"discipline,omitempty" validate:"omitempty,oneof=fifo priority preemptive"`
	Classes    []ClassConfig `yaml:"classes,omitempty" json:"classes,omitempty" validate:"dive"`

	Duration         float64 `yaml:"duration,omitempty" json:"duration,omitempty" validate:"gte=0"`
	WarmUp           float64 `yaml:"warm_up,omitempty" json:"warm_up,omitempty" validate:"gte=0"`
	Seed             *int64  `yaml:"seed,omitempty" json:"seed,omitempty"`
	ProgressInterval float64 `yaml:"progress_interval,omitempty" json:"progress_interval,omitempty" validate:"gte=0"`

	Threading *ThreadingConfig `yaml:"threading,omitempty" json:"threading,omitempty"`
}

// ClassConfig is one priority class. Index 0 in QueueConfig.Classes is the
// highest priority. Share is the fraction of arrivals in the class.
type ClassConfig struct {
	Name    string     `yaml:"name" json:"name" validate:"required"`
	Share   float64    `yaml:"share" json:"share" validate:"gt=0,lte=1"`
	Service *dist.Spec `yaml:"service,omitempty" json:"service,omitempty"`
}

// ThreadingConfig parameterizes the connection/thread contention sub-models.
type ThreadingConfig struct {
	Policy               ThreadingPolicy `yaml:"policy" json:"policy" validate:"oneof=dedicated shared"`
	Threads              int             `yaml:"threads" json:"threads" validate:"gte=1"`
	ThreadsPerConnection int             `yaml:"threads_per_connection,omitempty" json:"threads_per_connection,omitempty" validate:"gte=0"`
	ActiveConnections    int             `yaml:"active_connections,omitempty" json:"active_connections,omitempty" validate:"gte=0"`
	OverheadCoefficient  float64         `yaml:"overhead_coefficient,omitempty" json:"overhead_coefficient,omitempty" validate:"gte=0"`
}

// TandemConfig chains a broker stage and a receiver stage over a lossy link.
// The receiver's ArrivalRate is ignored: it is always derived as
// Broker.ArrivalRate / (1 - FailureProbability).
type TandemConfig struct {
	Broker             QueueConfig `yaml:"broker" json:"broker"`
	Receiver           QueueConfig `yaml:"receiver" json:"receiver"`
	LinkDelay          float64     `yaml:"link_delay" json:"link_delay" validate:"gte=0"`
	FailureProbability float64     `yaml:"failure_probability" json:"failure_probability" validate:"gte=0,lt=1"`
}

// SeedOrDefault returns the configured seed or DefaultSeed.
func (c QueueConfig) SeedOrDefault() int64 {
	if c.Seed == nil {
		return DefaultSeed
	}
	return *c.Seed
}

// WithSeed returns a copy of c using seed.
func (c QueueConfig) WithSeed(seed int64) QueueConfig {
	c.Seed = &seed
	return c
}

// EffectiveArrivalCV2 returns ArrivalCV2, defaulting to 1 for Poisson input.
func (c QueueConfig) EffectiveArrivalCV2() float64 {
	if c.ArrivalCV2 == 0 {
		return 1
	}
	return c.ArrivalCV2
}

// EffectiveDiscipline defaults an empty discipline to FIFO.
func (c QueueConfig) EffectiveDiscipline() Discipline {
	if c.Discipline == "" {
		return DisciplineFIFO
	}
	return c.Discipline
}

// EffectiveWarmUp defaults an unset warm-up to 10% of the duration.
func (c QueueConfig) EffectiveWarmUp() float64 {
	if c.WarmUp == 0 {
		return c.Duration / 10
	}
	return c.WarmUp
}

// ServiceSpec returns the service descriptor, turning ServiceRate into an
// exponential spec when Service is unset.
func (c QueueConfig) ServiceSpec() dist.Spec {
	if c.Service != nil {
		return *c.Service
	}
	mean := 0.0
	if c.ServiceRate > 0 {
		mean = 1 / c.ServiceRate
	}
	return dist.Spec{Type: dist.KindExponential, Mean: mean}
}

// ServiceDistribution builds the queue-level service distribution.
func (c QueueConfig) ServiceDistribution() (dist.Distribution, error) {
	return dist.New(c.ServiceSpec())
}

// ClassService builds the service distribution for class i, falling back to
// the queue-level distribution.
func (c QueueConfig) ClassService(i int) (dist.Distribution, error) {
	if i < len(c.Classes) && c.Classes[i].Service != nil {
		return dist.New(*c.Classes[i].Service)
	}
	return c.ServiceDistribution()
}

// MeanService is the arrival-weighted mean service time across classes.
func (c QueueConfig) MeanService() (float64, error) {
	if len(c.Classes) == 0 {
		d, err := c.ServiceDistribution()
		if err != nil {
			return 0, err
		}
		return d.Mean(), nil
	}
	mean := 0.0
	for i, cl := range c.Classes {
		d, err := c.ClassService(i)
		if err != nil {
			return 0, err
		}
		mean += cl.Share * d.Mean()
	}
	return mean, nil
}

// Utilization returns rho = lambda * E[S] / N.
func (c QueueConfig) Utilization() (float64, error) {
	mean, err := c.MeanService()
	if err != nil {
		return 0, err
	}
	return c.ArrivalRate * mean / float64(c.Servers), nil
}

// EffectiveArrivalRate is the receiver-side rate including retransmissions,
// lambda / (1 - p).
func (t TandemConfig) EffectiveArrivalRate() float64 {
	return t.Broker.ArrivalRate / (1 - t.FailureProbability)
}

// ReceiverConfig returns the receiver stage with its arrival rate replaced by
// EffectiveArrivalRate. Every receiver-side metric must be computed from it.
func (t TandemConfig) ReceiverConfig() QueueConfig {
	r := t.Receiver
	r.ArrivalRate = t.EffectiveArrivalRate()
	if r.Duration == 0 {
		r.Duration = t.Broker.Duration
	}
	if r.WarmUp == 0 {
		r.WarmUp = t.Broker.WarmUp
	}
	return r
}

// Load reads a single-queue configuration with strict field checking.
func Load(path string) (*QueueConfig, error) {
	var cfg QueueConfig
	if err := decodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadTandem reads a two-stage configuration with strict field checking.
func LoadTandem(path string) (*TandemConfig, error) {
	var cfg TandemConfig
	if err := decodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	return Decode(data, out)
}

// Decode parses YAML into out, rejecting unknown keys.
func Decode(data []byte, out any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}
