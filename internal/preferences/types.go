// Package preferences maps a user's job preferences between the form the
// user edits and the record persisted per identity, and keeps exactly one
// persisted record per identity.
package preferences

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalid is returned for values outside a controlled vocabulary or
// documents that do not satisfy the preference schema.
var ErrInvalid = errors.New("invalid preferences")

// RemotePreference is the remote-work choice offered to the user.
type RemotePreference string

const (
	RemoteAny  RemotePreference = "any"
	RemoteOnly RemotePreference = "only"
	RemoteNo   RemotePreference = "no"
)

// RemoteWork is the stored remote-work vocabulary.
type RemoteWork string

const (
	WorkRemote RemoteWork = "remote"
	WorkOnsite RemoteWork = "onsite"
	WorkHybrid RemoteWork = "hybrid"
	WorkEither RemoteWork = "either"
)

// ExperienceLevel is shared by both shapes.
type ExperienceLevel string

const (
	ExperienceEntry     ExperienceLevel = "entry"
	ExperienceMid       ExperienceLevel = "mid"
	ExperienceSenior    ExperienceLevel = "senior"
	ExperienceExecutive ExperienceLevel = "executive"
)

var (
	remotePreferences = []RemotePreference{RemoteAny, RemoteOnly, RemoteNo}
	experienceLevels  = []ExperienceLevel{ExperienceEntry, ExperienceMid, ExperienceSenior, ExperienceExecutive}
)

// Choices offered by the form. Stored sets are free text, so values outside
// these lists are kept as they are.
var (
	JobTypeOptions  = []string{"Full-time", "Part-time", "Contract", "Freelance", "Internship"}
	IndustryOptions = []string{"Technology", "Finance", "Healthcare", "Education", "Marketing", "Design", "Sales", "Consulting"}
)

// Preferences is the record the user edits. It lives only in memory until
// saved.
type Preferences struct {
	Location         string           `json:"location"`
	RemotePreference RemotePreference `json:"remotePreference"`
	JobTypes         []string         `json:"jobTypes"`
	MinSalary        int              `json:"minSalary"`
	Industries       []string         `json:"industries"`
	ExperienceLevel  ExperienceLevel  `json:"experienceLevel"`
}

// Record is the persisted row, one per user_id. Empty values mean the
// column was absent or null.
type Record struct {
	UserID             string          `json:"user_id,omitempty" mapstructure:"user_id"`
	LocationPreference string          `json:"location_preference" mapstructure:"location_preference"`
	RemotePreference   RemoteWork      `json:"remote_preference" mapstructure:"remote_preference"`
	JobTypes           []string        `json:"job_types" mapstructure:"job_types"`
	MinSalary          int             `json:"min_salary" mapstructure:"min_salary"`
	Industries         []string        `json:"industries" mapstructure:"industries"`
	ExperienceLevel    ExperienceLevel `json:"experience_level" mapstructure:"experience_level"`
}

// Defaults returns the form shown before anything was saved.
func Defaults() Preferences {
	return Preferences{
		Location:         "",
		RemotePreference: RemoteAny,
		JobTypes:         []string{},
		MinSalary:        0,
		Industries:       []string{},
		ExperienceLevel:  ExperienceMid,
	}
}

// ParseRemotePreference validates a user-supplied remote preference.
func ParseRemotePreference(s string) (RemotePreference, error) {
	v := RemotePreference(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(remotePreferences, v) {
		return "", fmt.Errorf("%w: remote preference %q (want one of any, only, no)", ErrInvalid, s)
	}
	return v, nil
}

// ParseExperienceLevel validates a user-supplied experience level.
func ParseExperienceLevel(s string) (ExperienceLevel, error) {
	v := ExperienceLevel(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(experienceLevels, v) {
		return "", fmt.Errorf("%w: experience level %q (want one of entry, mid, senior, executive)", ErrInvalid, s)
	}
	return v, nil
}

// RemotePreferences lists the remote choices in display order.
func RemotePreferences() []RemotePreference {
	return slices.Clone(remotePreferences)
}

// ExperienceLevels lists the experience levels in display order.
func ExperienceLevels() []ExperienceLevel {
	return slices.Clone(experienceLevels)
}

// Validate checks the enums and the salary floor.
func (p Preferences) Validate() error {
	if _, err := ParseRemotePreference(string(p.RemotePreference)); err != nil {
		return err
	}
	if _, err := ParseExperienceLevel(string(p.ExperienceLevel)); err != nil {
		return err
	}
	if p.MinSalary < 0 {
		return fmt.Errorf("%w: minimum salary must not be negative", ErrInvalid)
	}
	return nil
}

// Equal compares two forms, treating job types and industries as sets.
func (p Preferences) Equal(o Preferences) bool {
	return p.Location == o.Location &&
		p.RemotePreference == o.RemotePreference &&
		p.MinSalary == o.MinSalary &&
		p.ExperienceLevel == o.ExperienceLevel &&
		sameSet(p.JobTypes, o.JobTypes) &&
		sameSet(p.Industries, o.Industries)
}

// Toggle adds value to the set when absent and removes it otherwise, the
// way the checkboxes of the form behave.
func Toggle(set []string, value string) []string {
	if i := slices.Index(set, value); i >= 0 {
		return slices.Delete(slices.Clone(set), i, i+1)
	}
	return append(slices.Clone(set), value)
}

func sameSet(a, b []string) bool {
	a, b = uniq(a), uniq(b)
	if len(a) != len(b) {
		return false
	}
	for _, v := range a {
		if !slices.Contains(b, v) {
			return false
		}
	}
	return true
}

// uniq drops blanks and duplicates while keeping first-seen order.
func uniq(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
