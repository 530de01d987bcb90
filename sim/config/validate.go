package config

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/inference-sim/queueing-sim/sim/dist"
)

var (
	// ErrInvalidConfig is wrapped by every *ValidationError.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnstable matches a *ValidationError that rejects utilization >= 1.
	ErrUnstable = errors.New("queue is unstable")
)

// MaxMeaningfulOverhead is the largest shared-threading overhead coefficient
// that models ordinary contention. Larger values are accepted but flagged.
const MaxMeaningfulOverhead = 0.3

const ruleStable = "stable"

// Violation is one failed constraint.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError lists every violated constraint of a configuration.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return fmt.Sprintf("%v: %s", ErrInvalidConfig, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

// Is reports ErrUnstable when a stability rule failed.
func (e *ValidationError) Is(target error) bool {
	if target != ErrUnstable {
		return false
	}
	for _, v := range e.Violations {
		if v.Rule == ruleStable {
			return true
		}
	}
	return false
}

// Has reports whether field failed any rule.
func (e *ValidationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, rule, format string, args ...any) {
	e.Violations = append(e.Violations, Violation{Field: field, Rule: rule, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) merge(prefix string, other *ValidationError) {
	for _, v := range other.Violations {
		v.Field = prefix + "." + v.Field
		e.Violations = append(e.Violations, v)
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report YAML field names so violations match what users wrote.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// collectTagErrors runs struct-tag validation and converts the result.
func collectTagErrors(s any, out *ValidationError) {
	err := validate.Struct(s)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out.add("", "struct", "%v", err)
		return
	}
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		// Drop the root struct name: "QueueConfig.classes[0].share" -> "classes[0].share".
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			out.add(field, fe.Tag(), "must satisfy %s=%s, got %v", fe.Tag(), fe.Param(), fe.Value())
		} else {
			out.add(field, fe.Tag(), "must satisfy %s, got %v", fe.Tag(), fe.Value())
		}
	}
}

// Validate checks a configuration for analytical use. Unbounded-capacity
// queues must have utilization < 1.
func (c QueueConfig) Validate() error {
	return c.validate(false).orNil()
}

// ValidateSimulation adds the constraints of a simulation run.
func (c QueueConfig) ValidateSimulation() error {
	return c.validate(true).orNil()
}

func (c QueueConfig) validate(simulation bool) *ValidationError {
	out := &ValidationError{}
	collectTagErrors(c, out)
	if len(out.Violations) > 0 {
		// Derived checks below divide by fields that just failed.
		return out
	}

	serviceOK := true
	if c.Service != nil {
		if _, err := dist.New(*c.Service); err != nil {
			out.add("service", "distribution", "%v", err)
			serviceOK = false
		}
	} else if c.ServiceRate <= 0 {
		out.add("service_rate", "required", "service_rate must be > 0 when no service distribution is given")
		serviceOK = false
	}

	if len(c.Classes) > 0 {
		total := 0.0
		for i, cl := range c.Classes {
			total += cl.Share
			if cl.Service != nil {
				if _, err := dist.New(*cl.Service); err != nil {
					out.add(fmt.Sprintf("classes[%d].service", i), "distribution", "%v", err)
					serviceOK = false
				}
			}
		}
		if math.Abs(total-1) > 1e-6 {
			out.add("classes", "shares", "class shares must sum to 1, got %g", total)
		}
	} else if c.EffectiveDiscipline() != DisciplineFIFO {
		out.add("classes", "required", "discipline %q needs at least one class", c.Discipline)
	}

	if c.Capacity > 0 && c.Capacity < c.Servers {
		out.add("capacity", "gte_servers", "capacity %d must be >= servers %d", c.Capacity, c.Servers)
	}

	if serviceOK && c.Capacity == 0 {
		rho, err := c.Utilization()
		if err != nil {
			out.add("service", "distribution", "%v", err)
		} else if rho >= 1 {
			out.add("utilization", ruleStable, "utilization %.4f must be < 1 for an unbounded queue", rho)
		}
	}

	if c.Threading != nil {
		switch c.Threading.Policy {
		case ThreadingDedicated:
			if c.Threading.ThreadsPerConnection < 1 {
				out.add("threading.threads_per_connection", "required", "dedicated threading needs threads_per_connection >= 1")
			}
		case ThreadingShared:
			if c.Threading.ActiveConnections < 1 {
				out.add("threading.active_connections", "required", "shared threading needs active_connections >= 1")
			}
		}
	}

	if simulation {
		if c.Duration <= 0 {
			out.add("duration", "gt", "duration must be > 0 for a simulation run")
		} else if c.EffectiveWarmUp() >= c.Duration {
			out.add("warm_up", "lt_duration", "warm_up %g must be < duration %g", c.EffectiveWarmUp(), c.Duration)
		}
	}
	return out
}

// Validate checks both stages. The receiver is validated with its effective
// arrival rate, so a pipeline is rejected when either stage is unstable.
func (t TandemConfig) Validate() error {
	return t.validate(false).orNil()
}

// ValidateSimulation is Validate plus the simulation constraints of the broker.
func (t TandemConfig) ValidateSimulation() error {
	return t.validate(true).orNil()
}

func (t TandemConfig) validate(simulation bool) *ValidationError {
	out := &ValidationError{}
	if err := validate.Var(t.LinkDelay, "gte=0"); err != nil {
		out.add("link_delay", "gte", "link_delay must be >= 0, got %g", t.LinkDelay)
	}
	if err := validate.Var(t.FailureProbability, "gte=0,lt=1"); err != nil {
		out.add("failure_probability", "range", "failure_probability must be in [0, 1), got %g", t.FailureProbability)
		return out
	}
	out.merge("broker", t.Broker.validate(simulation))
	out.merge("receiver", t.ReceiverConfig().validate(simulation))
	return out
}
