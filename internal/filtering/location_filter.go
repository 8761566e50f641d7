package filtering

import (
	"context"
	"strings"

	"github.com/spigell/joblens/internal/jobs"
)

type locationFilter struct {
	needle   string
	disabled bool
	reason   string
}

// NewLocation creates a filter that keeps jobs whose location contains
// location, ignoring case. A blank location disables the filter.
func NewLocation(location string) Filter {
	f := &locationFilter{needle: strings.ToLower(strings.TrimSpace(location))}
	if f.needle == "" {
		f.Disable("no location filter set")
	}
	return f
}

func (f *locationFilter) Name() string { return "location" }

func (f *locationFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *locationFilter) IsEnabled() bool { return !f.disabled }

func (f *locationFilter) Apply(_ context.Context, v *jobs.Jobs) (*jobs.Jobs, Step, error) {
	initial := v.Len()
	dropped := v.Retain(func(job *jobs.Job) bool {
		return strings.Contains(strings.ToLower(job.Location), f.needle)
	})

	return v, Step{Initial: initial, Dropped: len(dropped), Left: v.Len()}, nil
}

func (f *locationFilter) Status() Status {
	details := map[string]string{}
	if f.needle != "" {
		details["location"] = f.needle
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
