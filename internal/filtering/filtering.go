package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/jobs"
	"github.com/spigell/joblens/internal/logger"
)

// Filter represents a single client-side filtering step applied to the
// normalized job list.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Apply(ctx context.Context, v *jobs.Jobs) (*jobs.Jobs, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Criteria are the filters active on the job listing.
type Criteria struct {
	// Location is matched as a case-insensitive substring. Blank disables it.
	Location string
	// MinSalary drops jobs whose known minimum salary is below it. Nil
	// disables it.
	MinSalary *int
	// ExcludeCompanies drops jobs posted by these companies.
	ExcludeCompanies []string
}

type Filtering struct {
	steps  []Filter
	logger *zap.Logger
}

func New(steps []Filter, log *zap.Logger) *Filtering {
	return &Filtering{
		steps:  steps,
		logger: logger.WithFields(log, zap.String("component", "filtering")),
	}
}

// Steps builds the standard chain: location, minimum salary, excluded
// companies, hidden jobs.
func Steps(c Criteria, excludeFile string) []Filter {
	return []Filter{
		NewLocation(c.Location),
		NewMinSalary(c.MinSalary),
		NewExcludeCompanies(c.ExcludeCompanies),
		NewExcludeFile(excludeFile),
	}
}

// StepNames lists the names accepted by DisableByName.
func StepNames() []string {
	steps := Steps(Criteria{}, "")
	names := make([]string, 0, len(steps))
	for _, step := range steps {
		names = append(names, step.Name())
	}
	return names
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the filters sequentially and returns the remaining jobs.
func (f *Filtering) Run(ctx context.Context, v *jobs.Jobs) (*jobs.Jobs, error) {
	for _, step := range f.steps {
		if !step.IsEnabled() {
			f.logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		f.logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		v = next
	}

	return v, nil
}

// Describe returns status entries for the configured filters.
func (f *Filtering) Describe() []Status {
	statuses := make([]Status, 0, len(f.steps))
	for _, step := range f.steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
