package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/logger"
	"github.com/spigell/shortlister/internal/profile"
	"github.com/spigell/shortlister/internal/store"
)

// Export compresses applicants into documents that carry their Applicant ID, the input
// format of Decompress. With write set the compressed JSON is stored on each row too.
// Applicants that fail are left out and their errors combined.
func (p *Processor) Export(ctx context.Context, applicantID string, write bool) ([]profile.Profile, error) {
	records, err := p.applicants(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	docs := make([]profile.Profile, 0, len(records))
	var errs error
	for _, rec := range records {
		id := store.Text(rec.Fields[p.schema.Fields.ApplicantID])
		if id == "" {
			p.logger.Warn("applicant row without applicant id, skipping", zap.String(logger.FieldRecordID, rec.ID))
			continue
		}

		compressed, err := p.compressor.Compress(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("applicant %s: %w", id, err))
			continue
		}

		if write {
			if _, err := p.compressor.WriteCompressed(ctx, rec.ID, compressed); err != nil {
				p.logger.Error("writing compressed json failed",
					append(logger.Applicant(id, p.schema.Tables.Applicants), zap.Error(err))...)
				errs = multierr.Append(errs, fmt.Errorf("applicant %s: %w", id, err))
			}
		}

		compressed.ApplicantID = id
		docs = append(docs, *compressed)
	}

	p.logger.Info("applicants compressed", zap.Int("count", len(docs)), zap.Bool("written", write))
	return docs, errs
}

// Decompress writes documents back into the child tables.
func (p *Processor) Decompress(ctx context.Context, docs []profile.Profile) profile.Report {
	return p.compressor.Decompress(ctx, docs)
}
