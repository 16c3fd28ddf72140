// Package pipeline runs the per-applicant flow: compress, shortlist, assess, persist.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/ai"
	"github.com/spigell/shortlister/internal/logger"
	"github.com/spigell/shortlister/internal/profile"
	"github.com/spigell/shortlister/internal/shortlist"
	"github.com/spigell/shortlister/internal/store"
)

const (
	reasonDisabled = "no API key"
	reasonFailed   = "provider error"
)

// Assessor produces an LLM assessment for a serialized profile. *ai.Gateway implements it.
type Assessor interface {
	Evaluate(ctx context.Context, profileText string) (*ai.Assessment, error)
}

// Deps aggregates the collaborators of a Processor. Assessor may be nil, in which case
// every applicant gets the skipped placeholder.
type Deps struct {
	Store     store.Store
	Schema    profile.Schema
	Evaluator *shortlist.Evaluator
	Assessor  Assessor
	Logger    *zap.Logger
}

type Processor struct {
	store      store.Store
	schema     profile.Schema
	compressor *profile.Compressor
	evaluator  *shortlist.Evaluator
	leads      *shortlist.LeadWriter
	assessor   Assessor
	logger     *zap.Logger
}

// Stats counts what happened during one batch.
type Stats struct {
	Processed    int
	Shortlisted  int
	Skipped      int
	LLMSkipped   int
	LeadFailures int
}

func (s Stats) fields() []zap.Field {
	return []zap.Field{
		zap.Int("processed", s.Processed),
		zap.Int("shortlisted", s.Shortlisted),
		zap.Int("skipped", s.Skipped),
		zap.Int("llm_skipped", s.LLMSkipped),
		zap.Int("lead_failures", s.LeadFailures),
	}
}

// Result describes a single processed applicant.
type Result struct {
	Verdict    shortlist.Verdict
	Assessment *ai.Assessment
	LLMSkipped bool
}

// LeadError marks a failed lead creation. The applicant itself was processed.
type LeadError struct {
	ApplicantID string
	Err         error
}

func (e *LeadError) Error() string {
	return fmt.Sprintf("applicant %s: %v", e.ApplicantID, e.Err)
}

func (e *LeadError) Unwrap() error { return e.Err }

func New(deps Deps) (*Processor, error) {
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Evaluator == nil {
		return nil, errors.New("shortlist evaluator is required")
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Processor{
		store:      deps.Store,
		schema:     deps.Schema,
		compressor: profile.NewCompressor(deps.Store, deps.Schema, log),
		evaluator:  deps.Evaluator,
		leads:      shortlist.NewLeadWriter(deps.Store, deps.Schema, log),
		assessor:   deps.Assessor,
		logger:     log,
	}, nil
}

// Run processes every applicant, or only the one matching applicantID when it is set.
// Lead failures do not stop the batch; they are combined into the returned error.
func (p *Processor) Run(ctx context.Context, applicantID string) (Stats, error) {
	var stats Stats
	log := p.logger.With(zap.String(logger.FieldRunID, uuid.NewString()))

	records, err := p.applicants(ctx, applicantID)
	if err != nil {
		return stats, err
	}

	log.Info("found applicants to process", zap.Int("count", len(records)))

	var errs error
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		id := store.Text(rec.Fields[p.schema.Fields.ApplicantID])
		if id == "" {
			log.Warn("applicant row without applicant id, skipping", zap.String(logger.FieldRecordID, rec.ID))
			stats.Skipped++
			continue
		}

		result, err := p.ProcessApplicant(ctx, rec.ID, id)

		var leadErr *LeadError
		switch {
		case errors.As(err, &leadErr):
			stats.LeadFailures++
			errs = multierr.Append(errs, err)
		case err != nil:
			log.Error("processing applicant failed, skipping",
				append(logger.Applicant(id, p.schema.Tables.Applicants), zap.Error(err))...)
			stats.Skipped++
			continue
		}

		stats.Processed++
		if result.Verdict.Meets {
			stats.Shortlisted++
		}
		if result.LLMSkipped {
			stats.LLMSkipped++
		}
	}

	log.Info("run finished", stats.fields()...)
	return stats, errs
}

// ProcessApplicant runs the whole flow for one applicant row. A failed lead creation
// does not stop the assessment; it is returned as a *LeadError afterwards.
func (p *Processor) ProcessApplicant(ctx context.Context, recordID, applicantID string) (*Result, error) {
	log := p.logger.With(zap.String(logger.FieldApplicantID, applicantID), zap.String(logger.FieldRecordID, recordID))

	compressed, err := p.compressor.Compress(ctx, applicantID)
	if err != nil {
		return nil, fmt.Errorf("compressing: %w", err)
	}

	text, err := p.compressor.WriteCompressed(ctx, recordID, compressed)
	if err != nil {
		return nil, err
	}
	log.Info("compressed json written")

	result := &Result{Verdict: p.evaluator.Evaluate(compressed)}
	log.Info("shortlist verdict",
		zap.Bool("meets", result.Verdict.Meets),
		zap.String("reason", result.Verdict.Reason),
	)

	var leadErr error
	if result.Verdict.Meets {
		if err := p.leads.CreateLead(ctx, recordID, text, result.Verdict.Reason); err != nil {
			log.Error("lead creation failed", zap.String(logger.FieldTable, p.schema.Tables.Shortlist), zap.Error(err))
			leadErr = &LeadError{ApplicantID: applicantID, Err: err}
		}
	}

	result.Assessment, result.LLMSkipped = p.assess(ctx, log, text)

	if _, err := p.store.Update(ctx, p.schema.Tables.Applicants, recordID, map[string]any{
		p.schema.Fields.LLMSummary:   result.Assessment.Summary,
		p.schema.Fields.LLMScore:     result.Assessment.Score,
		p.schema.Fields.LLMFollowUps: result.Assessment.FollowUps,
	}); err != nil {
		return result, multierr.Append(leadErr, fmt.Errorf("writing assessment to %s: %w", recordID, err))
	}

	log.Info("applicant processed", zap.Int("score", result.Assessment.Score))
	return result, leadErr
}

func (p *Processor) assess(ctx context.Context, log *zap.Logger, text string) (*ai.Assessment, bool) {
	if p.assessor == nil {
		return ai.Skipped(reasonDisabled), true
	}

	assessment, err := p.assessor.Evaluate(ctx, text)
	if err != nil {
		log.Warn("skipping llm evaluation", zap.Error(err))
		return ai.Skipped(reasonFailed), true
	}
	return assessment, false
}

// Shortlist re-evaluates the compressed JSON already stored on applicant rows. Rows
// without it are ignored; rows with invalid JSON are logged and skipped.
func (p *Processor) Shortlist(ctx context.Context) (Stats, error) {
	var stats Stats
	log := p.logger.With(zap.String(logger.FieldRunID, uuid.NewString()))

	records, err := p.store.List(ctx, p.schema.Tables.Applicants, store.All,
		p.schema.Fields.ApplicantID, p.schema.Fields.CompressedJSON)
	if err != nil {
		return stats, fmt.Errorf("listing %s: %w", p.schema.Tables.Applicants, err)
	}

	log.Info("running shortlist evaluation", zap.Int("applicants", len(records)))

	var errs error
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		text := store.Text(rec.Fields[p.schema.Fields.CompressedJSON])
		if text == "" {
			stats.Skipped++
			continue
		}

		var compressed profile.Profile
		if err := json.Unmarshal([]byte(text), &compressed); err != nil {
			log.Warn("invalid compressed json, skipping",
				zap.String(logger.FieldRecordID, rec.ID),
				zap.String(logger.FieldTable, p.schema.Tables.Applicants),
				zap.String("field", p.schema.Fields.CompressedJSON),
				zap.Error(err),
			)
			stats.Skipped++
			continue
		}

		stats.Processed++
		verdict := p.evaluator.Evaluate(&compressed)
		if !verdict.Meets {
			log.Info("applicant not shortlisted", zap.String(logger.FieldRecordID, rec.ID), zap.String("reason", verdict.Reason))
			continue
		}

		stats.Shortlisted++
		if err := p.leads.CreateLead(ctx, rec.ID, text, verdict.Reason); err != nil {
			stats.LeadFailures++
			errs = multierr.Append(errs, &LeadError{ApplicantID: store.Text(rec.Fields[p.schema.Fields.ApplicantID]), Err: err})
		}
	}

	log.Info("shortlist finished", stats.fields()...)
	return stats, errs
}

func (p *Processor) applicants(ctx context.Context, applicantID string) ([]store.Record, error) {
	var filter store.Filter
	if applicantID != "" {
		filter = store.FieldEquals(p.schema.Fields.ApplicantID, applicantID)
	}

	records, err := p.store.List(ctx, p.schema.Tables.Applicants, filter)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", p.schema.Tables.Applicants, err)
	}
	return records, nil
}
