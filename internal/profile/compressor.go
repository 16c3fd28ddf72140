package profile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/logger"
	"github.com/spigell/shortlister/internal/store"
)

type Compressor struct {
	store  store.Store
	schema Schema
	logger *zap.Logger
}

// Report summarizes a decompression batch.
type Report struct {
	Applied  int
	Skipped  int
	Failures int
}

func NewCompressor(s store.Store, schema Schema, log *zap.Logger) *Compressor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compressor{store: s, schema: schema, logger: log}
}

// Compress collects the Personal, Salary and Experience rows of an applicant into one
// profile. Only the first Personal and Salary rows are used.
func (c *Compressor) Compress(ctx context.Context, applicantID string) (*Profile, error) {
	filter := store.FieldEquals(c.schema.Fields.ApplicantID, applicantID)

	personal, err := c.first(ctx, c.schema.Tables.Personal, filter)
	if err != nil {
		return nil, err
	}

	salary, err := c.first(ctx, c.schema.Tables.Salary, filter)
	if err != nil {
		return nil, err
	}

	rows, err := c.store.List(ctx, c.schema.Tables.Experience, filter)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", c.schema.Tables.Experience, err)
	}

	experience := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		fields := c.stripLink(row.Fields)
		for _, key := range []string{fieldStart, fieldEnd} {
			if s, ok := fields[key].(string); ok && s != "" {
				fields[key] = TruncateDate(s)
			}
		}
		experience = append(experience, fields)
	}

	return &Profile{
		Personal:   personal,
		Experience: experience,
		Salary:     salary,
	}, nil
}

// WriteCompressed stores the serialized profile on the applicant row and returns the text.
func (c *Compressor) WriteCompressed(ctx context.Context, recordID string, p *Profile) (string, error) {
	stored := *p
	stored.ApplicantID = ""

	text, err := Marshal(&stored)
	if err != nil {
		return "", err
	}

	if _, err := c.store.Update(ctx, c.schema.Tables.Applicants, recordID, map[string]any{
		c.schema.Fields.CompressedJSON: text,
	}); err != nil {
		return "", fmt.Errorf("writing compressed json to %s: %w", recordID, err)
	}

	return text, nil
}

// Decompress writes each document back into the child tables. Problems with one row or
// one applicant are logged and counted; they never stop the batch.
func (c *Compressor) Decompress(ctx context.Context, docs []Profile) Report {
	var report Report

	c.logger.Info("starting decompression", zap.Int("applicants", len(docs)))

	for _, doc := range docs {
		if doc.ApplicantID == "" {
			c.logger.Warn("document without applicant id, skipping",
				zap.Any("personal", doc.Personal),
			)
			report.Skipped++
			continue
		}

		log := logger.With(c.logger, logger.Applicant(doc.ApplicantID, "")...)

		recID, err := c.resolve(ctx, doc.ApplicantID)
		if err != nil {
			log.Warn("resolving applicant failed, skipping", zap.Error(err))
			report.Skipped++
			continue
		}
		if recID == "" {
			log.Warn("no applicant found, skipping")
			report.Skipped++
			continue
		}

		log = log.With(zap.String(logger.FieldRecordID, recID))
		log.Info("decompressing applicant")

		report.Failures += c.ensureSingle(ctx, log, c.schema.Tables.Personal, recID, doc.Personal)
		report.Failures += c.ensureSingle(ctx, log, c.schema.Tables.Salary, recID, doc.Salary)
		report.Failures += c.replaceAll(ctx, log, c.schema.Tables.Experience, recID, doc.Experience)
		report.Applied++

		log.Info("finished applicant")
	}

	c.logger.Info("decompression finished",
		zap.Int("applied", report.Applied),
		zap.Int("skipped", report.Skipped),
		zap.Int("failures", report.Failures),
	)

	return report
}

func (c *Compressor) resolve(ctx context.Context, applicantID string) (string, error) {
	recs, err := c.store.List(ctx, c.schema.Tables.Applicants, store.FieldEquals(c.schema.Fields.ApplicantID, applicantID))
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "", nil
	}
	return recs[0].ID, nil
}

func (c *Compressor) children(ctx context.Context, table, recID string) ([]store.Record, error) {
	return c.store.List(ctx, table, store.LinkContains(c.schema.Fields.ApplicantID, recID))
}

// prepare builds the row written for a child table.
func (c *Compressor) prepare(fields map[string]any, recID string) map[string]any {
	out := copyFields(fields)
	if v, ok := out[fieldTechnologies]; ok {
		out[fieldTechnologies] = NormalizeTechnologies(v)
	}
	out = NormalizeDates(out)
	out[c.schema.Fields.ApplicantID] = []string{recID}
	return out
}

// ensureSingle keeps exactly one row in table for the applicant and returns the number
// of failed writes.
func (c *Compressor) ensureSingle(ctx context.Context, log *zap.Logger, table, recID string, fields map[string]any) int {
	log = log.With(zap.String(logger.FieldTable, table))
	row := c.prepare(fields, recID)

	existing, err := c.children(ctx, table, recID)
	if err != nil {
		log.Error("listing existing rows failed", zap.Error(err))
		return 1
	}

	if len(existing) == 0 {
		if _, err := c.store.Create(ctx, table, row); err != nil {
			log.Error("creating row failed", zap.Error(err))
			return 1
		}
		log.Debug("created row")
		return 0
	}

	failures := 0
	if _, err := c.store.Update(ctx, table, existing[0].ID, row); err != nil {
		log.Error("updating row failed", zap.String("row_id", existing[0].ID), zap.Error(err))
		failures++
	} else {
		log.Debug("updated row", zap.String("row_id", existing[0].ID))
	}

	for _, surplus := range existing[1:] {
		if err := c.store.Delete(ctx, table, []string{surplus.ID}); err != nil {
			log.Error("deleting surplus row failed", zap.String("row_id", surplus.ID), zap.Error(err))
			failures++
		}
	}

	return failures
}

// replaceAll deletes the applicant's rows in table and creates one row per entry.
// Rows are not recreated when the delete fails, otherwise they would be duplicated.
func (c *Compressor) replaceAll(ctx context.Context, log *zap.Logger, table, recID string, rows []map[string]any) int {
	log = log.With(zap.String(logger.FieldTable, table))

	existing, err := c.children(ctx, table, recID)
	if err != nil {
		log.Error("listing existing rows failed, not recreating", zap.Error(err))
		return 1
	}

	if len(existing) > 0 {
		ids := make([]string, 0, len(existing))
		for _, rec := range existing {
			ids = append(ids, rec.ID)
		}
		log.Debug("deleting existing rows", zap.Int("count", len(ids)))
		if err := c.store.Delete(ctx, table, ids); err != nil {
			log.Error("deleting existing rows failed, not recreating", zap.Error(err))
			return 1
		}
	}

	failures := 0
	for i, fields := range rows {
		if _, err := c.store.Create(ctx, table, c.prepare(fields, recID)); err != nil {
			log.Error("creating row failed", zap.Int("entry", i), zap.Error(err))
			failures++
		}
	}

	return failures
}

func (c *Compressor) first(ctx context.Context, table string, filter store.Filter) (map[string]any, error) {
	rows, err := c.store.List(ctx, table, filter)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", table, err)
	}
	if len(rows) == 0 {
		return map[string]any{}, nil
	}
	return c.stripLink(rows[0].Fields), nil
}

func (c *Compressor) stripLink(fields map[string]any) map[string]any {
	out := copyFields(fields)
	delete(out, c.schema.Fields.ApplicantID)
	return out
}
