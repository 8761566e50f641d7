package filtering

import (
	"context"
	"strconv"

	"github.com/spigell/joblens/internal/jobs"
)

type minSalaryFilter struct {
	floor    int
	disabled bool
	reason   string
}

// NewMinSalary creates a filter that drops jobs whose known minimum salary
// is below floor. Jobs without salary data are always kept. A nil floor
// disables the filter.
func NewMinSalary(floor *int) Filter {
	f := &minSalaryFilter{}
	if floor == nil {
		f.Disable("no minimum salary set")
		return f
	}
	f.floor = *floor
	return f
}

func (f *minSalaryFilter) Name() string { return "min_salary" }

func (f *minSalaryFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *minSalaryFilter) IsEnabled() bool { return !f.disabled }

func (f *minSalaryFilter) Apply(_ context.Context, v *jobs.Jobs) (*jobs.Jobs, Step, error) {
	initial := v.Len()
	dropped := v.Retain(func(job *jobs.Job) bool {
		return job.SalaryMin == nil || *job.SalaryMin >= f.floor
	})

	return v, Step{Initial: initial, Dropped: len(dropped), Left: v.Len()}, nil
}

func (f *minSalaryFilter) Status() Status {
	details := map[string]string{}
	if f.IsEnabled() {
		details["min_salary"] = strconv.Itoa(f.floor)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
