package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldService is the structured log field key for the remote service name.
	FieldService = "service"
	// FieldEndpoint is the structured log field key for the called endpoint path.
	FieldEndpoint = "endpoint"
	// FieldUserID is the structured log field key for the bound identity.
	FieldUserID = "user_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// A nil logger is replaced by a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// ServiceFields returns the fields describing a call to a remote service.
func ServiceFields(service, endpoint string) []zap.Field {
	return StringFields(
		StringField{Key: FieldService, Value: service},
		StringField{Key: FieldEndpoint, Value: endpoint},
	)
}

// WithService attaches the service name to the provided logger.
func WithService(logger *zap.Logger, service string) *zap.Logger {
	return WithFields(logger, ServiceFields(service, "")...)
}

// UserField returns the identity field, or a skip field when the id is empty.
func UserField(userID string) zap.Field {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return zap.Skip()
	}
	return zap.String(FieldUserID, userID)
}
