// Package jobs holds the job list as rendered to the user.
package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	JobIDField      = "ID"
	JobCompanyField = "Company"
)

type Jobs struct {
	Items []*Job
}

// Job is a matched job in display shape. SalaryMin and SalaryMax are nil
// when unknown, which is different from a zero salary.
type Job struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Company      string         `json:"company"`
	Location     string         `json:"location"`
	Description  string         `json:"description"`
	Requirements string         `json:"requirements,omitempty"`
	SalaryMin    *int           `json:"salary_min,omitempty"`
	SalaryMax    *int           `json:"salary_max,omitempty"`
	PostedAt     string         `json:"posted_at"`
	MatchScore   float64        `json:"match_score"`
	JobURL       string         `json:"job_url"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type ExcludedJobs struct {
	Items []*ExcludedJob
}

type ExcludedJob struct {
	ID         string
	URL        string
	Company    string
	ExcludedAt time.Time
}

// Empty returns a list with no items, used when matching is unavailable.
func Empty() *Jobs {
	return &Jobs{Items: []*Job{}}
}

func (j *Jobs) Len() int {
	if j == nil {
		return 0
	}
	return len(j.Items)
}

func (j *Jobs) IDs() []string {
	ids := make([]string, 0, j.Len())
	for _, job := range j.Items {
		ids = append(ids, job.ID)
	}
	return ids
}

func (j *Jobs) FindByID(id string) *Job {
	for _, job := range j.Items {
		if job.ID == id {
			return job
		}
	}
	return nil
}

// Retain keeps the jobs for which keep returns true, preserving ranking
// order, and returns the ids of the dropped ones.
func (j *Jobs) Retain(keep func(*Job) bool) []string {
	var dropped []string
	kept := j.Items[:0]
	for _, job := range j.Items {
		if keep(job) {
			kept = append(kept, job)
			continue
		}
		dropped = append(dropped, job.ID)
	}
	clear(j.Items[len(kept):])
	j.Items = kept
	return dropped
}

// Exclude drops jobs whose field matches one of targets.
func (j *Jobs) Exclude(name string, targets []string) []string {
	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		set[t] = struct{}{}
	}
	return j.Retain(func(job *Job) bool {
		_, hit := set[job.GetStringField(name)]
		return !hit
	})
}

func (job *Job) GetStringField(name string) string {
	switch name {
	case JobIDField:
		return job.ID
	case JobCompanyField:
		return job.Company
	default:
		return ""
	}
}

// SalaryRange renders the salary columns, "n/a" when unknown.
func (job *Job) SalaryRange() string {
	switch {
	case job.SalaryMin == nil && job.SalaryMax == nil:
		return "n/a"
	case job.SalaryMax == nil:
		return strconv.Itoa(*job.SalaryMin) + "+"
	case job.SalaryMin == nil:
		return "up to " + strconv.Itoa(*job.SalaryMax)
	default:
		return fmt.Sprintf("%d-%d", *job.SalaryMin, *job.SalaryMax)
	}
}

// ReportByCompany groups the list by company for the summary view.
func (j *Jobs) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, job := range j.Items {
		key := job.Company
		if key == "" {
			key = "(unknown company)"
		}
		report[key] = append(report[key], map[string]string{
			"title":    job.Title,
			"url":      job.JobURL,
			"location": job.Location,
			"salary":   job.SalaryRange(),
			"match":    fmt.Sprintf("%g%%", job.MatchScore),
		})
	}
	return report
}

func (j *Jobs) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "jobs_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(j); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func (j *Jobs) ToExcluded() *ExcludedJobs {
	excluded := &ExcludedJobs{}
	for _, job := range j.Items {
		excluded.Items = append(excluded.Items, &ExcludedJob{
			ID:         job.ID,
			URL:        job.JobURL,
			Company:    job.Company,
			ExcludedAt: time.Now().UTC(),
		})
	}
	return excluded
}

// GetExcludedJobsFromFile reads the hidden-jobs file. A missing or empty
// file is an empty list.
func GetExcludedJobsFromFile(path string) (*ExcludedJobs, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ExcludedJobs{}, nil
		}
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedJobs{}, nil
	}

	var excluded ExcludedJobs
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

// Append adds entries not already present.
func (e *ExcludedJobs) Append(s *ExcludedJobs) {
	seen := make(map[string]struct{}, len(e.Items))
	for _, item := range e.Items {
		seen[item.ID] = struct{}{}
	}
	for _, item := range s.Items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		e.Items = append(e.Items, item)
	}
}

func (e *ExcludedJobs) JobIDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, job := range e.Items {
		ids = append(ids, job.ID)
	}
	return ids
}

func (e *ExcludedJobs) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
