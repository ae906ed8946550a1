package metrics

import (
	"time"

	obserrors "github.com/probeworks/apiprobe/internal/observability/errors"
	"github.com/probeworks/apiprobe/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Schedule fire outcomes beyond plain success/error.
const (
	// OutcomeCoalesced tags a firing skipped because the previous run of
	// the same task was still in flight.
	OutcomeCoalesced = "coalesced"
	// OutcomeMisfire tags a firing skipped because the worker pool stayed
	// saturated past the misfire grace.
	OutcomeMisfire = "misfire"
)

// BatchMetric captures one finished batch for metric emission.
type BatchMetric struct {
	Result   string
	Total    int
	Passed   int
	Failed   int
	Errored  int
	Duration time.Duration
	Err      error
}

// EmitBatch emits standardised batch completion metrics.
func EmitBatch(sink statsd.Sink, in BatchMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"result": in.Result}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("batch.completed", 1, tags)
	if in.Duration > 0 {
		sink.Timing("batch.duration", in.Duration, CloneTags(tags))
	}
	if in.Total > 0 {
		sink.Gauge("batch.pass_rate", float64(in.Passed)/float64(in.Total)*100, CloneTags(tags))
	}
}

// ScheduleMetric captures one scheduler firing for metric emission.
type ScheduleMetric struct {
	Outcome  string
	Duration time.Duration
	Err      error
}

// EmitScheduleFire emits one scheduler firing outcome, including the
// coalesce/misfire skips.
func EmitScheduleFire(sink statsd.Sink, in ScheduleMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"outcome": in.Outcome}
	if in.Err != nil && in.Outcome == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("schedule.fire", 1, tags)
	if in.Duration > 0 {
		sink.Timing("schedule.duration", in.Duration, CloneTags(tags))
	}
}

// SweepMetric captures one reaper sweep for metric emission.
type SweepMetric struct {
	Removed int
	Err     error
}

// EmitSweep emits progress-registry sweep metrics.
func EmitSweep(sink statsd.Sink, in SweepMetric) {
	if sink == nil {
		return
	}

	result := ResultNoop
	if in.Err != nil {
		result = ResultError
	} else if in.Removed > 0 {
		result = ResultSuccess
	}

	tags := map[string]string{"result": result}
	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("progress.sweep", 1, tags)
	if in.Removed > 0 {
		sink.Count("progress.sweep.removed", int64(in.Removed), CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty maps.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
