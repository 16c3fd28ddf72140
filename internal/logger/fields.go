package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldProvider    = "ai_provider"
	FieldModel       = "ai_model"
	FieldApplicantID = "applicant_id"
	FieldRecordID    = "record_id"
	// FieldTable is the store table an operation touched.
	FieldTable = "table"
	FieldRunID = "run_id"
)

// Fields turns key/value pairs into string fields. Pairs with an empty key or value
// are dropped, as is a trailing key without a value.
func Fields(pairs ...string) []zap.Field {
	out := make([]zap.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, value := strings.TrimSpace(pairs[i]), strings.TrimSpace(pairs[i+1])
		if key == "" || value == "" {
			continue
		}
		out = append(out, zap.String(key, value))
	}
	return out
}

// With is logger.With that tolerates a nil logger.
func With(l *zap.Logger, fields ...zap.Field) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// ForProvider tags every entry with the LLM provider and model.
func ForProvider(l *zap.Logger, provider, model string) *zap.Logger {
	return With(l, Fields(FieldProvider, provider, FieldModel, model)...)
}

// Applicant describes a store operation made on behalf of an applicant.
func Applicant(applicantID, table string) []zap.Field {
	return Fields(FieldApplicantID, applicantID, FieldTable, table)
}
