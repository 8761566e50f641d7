package filtering

import (
	"context"
	"slices"
	"strings"

	"github.com/spigell/joblens/internal/jobs"
)

type companyFilter struct {
	companies []string
	disabled  bool
	reason    string
}

// NewExcludeCompanies creates a filter that drops jobs posted by one of
// companies, ignoring case. An empty list disables the filter.
func NewExcludeCompanies(companies []string) Filter {
	f := &companyFilter{}
	for _, c := range companies {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" && !slices.Contains(f.companies, c) {
			f.companies = append(f.companies, c)
		}
	}
	if len(f.companies) == 0 {
		f.Disable("no companies excluded")
	}
	return f
}

func (f *companyFilter) Name() string { return "exclude_company" }

func (f *companyFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *companyFilter) IsEnabled() bool { return !f.disabled }

func (f *companyFilter) Apply(_ context.Context, v *jobs.Jobs) (*jobs.Jobs, Step, error) {
	initial := v.Len()
	dropped := v.Retain(func(job *jobs.Job) bool {
		company := strings.ToLower(strings.TrimSpace(job.GetStringField(jobs.JobCompanyField)))
		return !slices.Contains(f.companies, company)
	})

	return v, Step{Initial: initial, Dropped: len(dropped), Left: v.Len()}, nil
}

func (f *companyFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
