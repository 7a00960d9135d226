package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldCandidate is the structured log field key for the candidate identifier.
	FieldCandidate = "candidate_id"
	// FieldJob is the structured log field key for the job identifier.
	FieldJob = "job_id"
	// FieldFingerprint is the structured log field key for a cache fingerprint.
	FieldFingerprint = "fingerprint"
	// FieldWeightsVersion is the structured log field key for the weight vector version.
	FieldWeightsVersion = "weights_version"
	// FieldComponent is the structured log field key for a scoring component name.
	FieldComponent = "component"
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

// WithFields attaches fields to the logger, falling back to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	logger = OrNop(logger)

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// MatchFields returns the fields identifying a candidate/job pair.
func MatchFields(candidateID, jobID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldCandidate, Value: candidateID},
		StringField{Key: FieldJob, Value: jobID},
	)
}

// WithMatch attaches the candidate/job pair to the logger.
func WithMatch(logger *zap.Logger, candidateID, jobID string) *zap.Logger {
	return WithFields(logger, MatchFields(candidateID, jobID)...)
}
