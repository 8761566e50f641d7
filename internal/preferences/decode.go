package preferences

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
)

// Columns lists the persisted columns in the order backends select them.
var Columns = []string{
	"user_id",
	"location_preference",
	"remote_preference",
	"job_types",
	"min_salary",
	"industries",
	"experience_level",
}

// DecodeRecord decodes a raw row into a Record. Keys outside Columns are
// rejected rather than silently dropped.
func DecodeRecord(row map[string]any) (*Record, error) {
	var record Record

	cfg := &mapstructure.DecoderConfig{
		Metadata:    nil,
		Result:      &record,
		TagName:     "mapstructure",
		ErrorUnused: true,
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(row); err != nil {
		return nil, fmt.Errorf("decoding preference row: %w", err)
	}

	return &record, nil
}

const formSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "location": {"type": "string"},
    "remotePreference": {"type": "string", "enum": ["any", "only", "no"]},
    "jobTypes": {"type": "array", "items": {"type": "string"}, "uniqueItems": true},
    "minSalary": {"type": "integer", "minimum": 0},
    "industries": {"type": "array", "items": {"type": "string"}, "uniqueItems": true},
    "experienceLevel": {"type": "string", "enum": ["entry", "mid", "senior", "executive"]}
  }
}`

var formSchemaLoader = gojsonschema.NewStringLoader(formSchema)

// DecodeJSON validates a preference document against the form schema and
// decodes it on top of the defaults, so omitted fields keep their default.
func DecodeJSON(data []byte) (Preferences, error) {
	result, err := gojsonschema.Validate(formSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Preferences{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return Preferences{}, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}

	p := Defaults()
	if err := json.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return p, nil
}
