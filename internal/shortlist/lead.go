package shortlist

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/profile"
	"github.com/spigell/shortlister/internal/store"
)

// LeadWriter appends rows to the shortlisted leads table.
type LeadWriter struct {
	store  store.Store
	table  string
	fields profile.Fields
	logger *zap.Logger
}

func NewLeadWriter(s store.Store, schema profile.Schema, logger *zap.Logger) *LeadWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadWriter{store: s, table: schema.Tables.Shortlist, fields: schema.Fields, logger: logger}
}

// CreateLead links a new lead to the applicant row. Store errors are returned, never
// swallowed: a lost lead must be visible to the caller.
func (w *LeadWriter) CreateLead(ctx context.Context, recordID, profileJSON, reason string) error {
	fields := map[string]any{
		w.fields.LeadApplicant: []string{recordID},
		w.fields.LeadJSON:      profileJSON,
		w.fields.LeadReason:    reason,
	}

	w.logger.Debug("creating shortlisted lead",
		zap.String("record_id", recordID),
		zap.String("table", w.table),
	)

	rec, err := w.store.Create(ctx, w.table, fields)
	if err != nil {
		return fmt.Errorf("creating shortlisted lead for %s: %w", recordID, err)
	}

	w.logger.Info("shortlisted lead created",
		zap.String("record_id", recordID),
		zap.String("lead_id", rec.ID),
	)
	return nil
}
