package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"

	FieldMenteeID     = "mentee_id"
	FieldMentorID     = "mentor_id"
	FieldMentorshipID = "mentorship_id"
	FieldInvitationID = "invitation_id"
	FieldTool         = "tool"
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
// A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// AIFields describes the AI provider and model. Empty values are skipped.
func AIFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// LifecycleFields describes the records touched by an invitation lifecycle operation.
func LifecycleFields(mentorshipID, invitationID, mentorID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldMentorshipID, Value: mentorshipID},
		StringField{Key: FieldInvitationID, Value: invitationID},
		StringField{Key: FieldMentorID, Value: mentorID},
	)
}
