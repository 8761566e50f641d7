package preferences

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecord(t *testing.T) {
	row := map[string]any{
		"user_id":             "user-1",
		"location_preference": "Remote",
		"remote_preference":   "hybrid",
		"job_types":           []any{"full-time"},
		"min_salary":          float64(70000),
		"industries":          nil,
		"experience_level":    "senior",
	}

	record, err := DecodeRecord(row)
	require.NoError(t, err)

	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, WorkHybrid, record.RemotePreference)
	assert.Equal(t, []string{"full-time"}, record.JobTypes)
	assert.Equal(t, 70000, record.MinSalary)
	assert.Nil(t, record.Industries)
	assert.Equal(t, ExperienceSenior, record.ExperienceLevel)
}

func TestDecodeRecordRejectsUnknownKeys(t *testing.T) {
	_, err := DecodeRecord(map[string]any{
		"user_id":        "user-1",
		"favourite_food": "pizza",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "favourite_food")
}

func TestDecodeJSON(t *testing.T) {
	p, err := DecodeJSON([]byte(`{"remotePreference":"only","jobTypes":["contract"],"minSalary":50000}`))
	require.NoError(t, err)

	assert.Equal(t, RemoteOnly, p.RemotePreference)
	assert.Equal(t, []string{"contract"}, p.JobTypes)
	assert.Equal(t, 50000, p.MinSalary)
	assert.Equal(t, ExperienceMid, p.ExperienceLevel, "omitted fields keep defaults")
	assert.Equal(t, []string{}, p.Industries)
}

func TestDecodeJSONRejectsInvalidDocuments(t *testing.T) {
	tests := map[string]string{
		"unknown key":       `{"salary": 10}`,
		"hybrid not in ui":  `{"remotePreference":"hybrid"}`,
		"negative salary":   `{"minSalary": -5}`,
		"fractional salary": `{"minSalary": 10.5}`,
		"duplicate types":   `{"jobTypes": ["a", "a"]}`,
		"not json":          `{`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeJSON([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "expected ErrInvalid, got %v", err)
		})
	}
}
