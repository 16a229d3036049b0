package verify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/pattern"
)

const defaultChunkSize = 1000

// Driver verifies a prospect's candidate addresses chunk by chunk, stopping
// at the first chunk that yields a valid email. Chunks are processed strictly
// in order; there is no fan-out, both to allow early exit and to respect the
// vendor's account-level limits.
type Driver struct {
	gen       *pattern.Generator
	orch      *Orchestrator
	chunkSize int
	poolSize  int
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithChunkSize sets how many candidates go into each uploaded list.
func WithChunkSize(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 {
			d.chunkSize = n
		}
	}
}

// WithPoolSize caps the total candidate pool independently of the chunk size.
// When unset the pool is capped at one chunk, matching the historical
// behavior where a single parameter served both purposes.
func WithPoolSize(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 {
			d.poolSize = n
		}
	}
}

// NewDriver creates a Driver over the given generator and orchestrator.
func NewDriver(gen *pattern.Generator, orch *Orchestrator, opts ...DriverOption) *Driver {
	d := &Driver{
		gen:       gen,
		orch:      orch,
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.poolSize == 0 {
		d.poolSize = d.chunkSize
	}
	return d
}

// Report is the outcome of a full multi-batch verification.
type Report struct {
	JobID            string   `json:"job_id"`
	ValidEmails      []string `json:"valid_emails"`
	TotalValid       int      `json:"total_valid"`
	GeneratedEmails  []string `json:"generated_emails"`
	TotalGenerated   int      `json:"total_generated"`
	BatchesProcessed int      `json:"total_batches_processed"`
}

// SingleResult is the outcome of a first-valid-address search.
type SingleResult struct {
	ValidEmail string `json:"valid_email,omitempty"`
	Status     string `json:"status"`
}

// Single-result statuses.
const (
	SingleStatusFound     = "found"
	SingleStatusExhausted = "exhausted"
)

// VerifyEmails generates the candidate pool for the prospect and verifies it
// in consecutive chunks, stopping early once any chunk yields valid emails.
// An empty pool (a name that normalized to nothing) returns immediately with
// zero batches processed and no network calls. On a mid-run failure, the
// report accumulated so far is returned alongside the error.
func (d *Driver) VerifyEmails(ctx context.Context, jobID, firstName, lastName, domain string) (*Report, error) {
	started := time.Now()
	log := zap.L().With(
		zap.String("job_id", jobID),
		zap.String("first_name", firstName),
		zap.String("last_name", lastName),
		zap.String("domain", domain),
	)

	candidates := d.gen.GenerateAddresses(firstName, lastName, domain, d.poolSize)
	report := &Report{
		JobID:           jobID,
		GeneratedEmails: candidates,
		TotalGenerated:  len(candidates),
	}
	if len(candidates) == 0 {
		log.Info("no candidates generated, nothing to verify")
		return report, nil
	}

	totalBatches := (len(candidates) + d.chunkSize - 1) / d.chunkSize
	log.Info("starting verification",
		zap.Int("candidates", len(candidates)),
		zap.Int("chunk_size", d.chunkSize),
		zap.Int("total_batches", totalBatches),
	)

	for start := 0; start < len(candidates); start += d.chunkSize {
		end := min(start+d.chunkSize, len(candidates))
		chunk := candidates[start:end]

		outcome, err := d.orch.RunBatch(ctx, jobID, chunk)
		if err != nil {
			log.Error("batch verification failed",
				zap.Int("batch", report.BatchesProcessed+1),
				zap.Int("total_batches", totalBatches),
				zap.Duration("elapsed", time.Since(started)),
				zap.Error(err),
			)
			return report, eris.Wrapf(err, "verify: job %s batch %d", jobID, report.BatchesProcessed+1)
		}
		report.BatchesProcessed++

		if len(outcome.ValidEmails) > 0 {
			report.ValidEmails = append(report.ValidEmails, outcome.ValidEmails...)
			break
		}
	}

	report.TotalValid = len(report.ValidEmails)
	log.Info("verification finished",
		zap.Int("valid", report.TotalValid),
		zap.Int("batches_processed", report.BatchesProcessed),
		zap.Duration("elapsed", time.Since(started)),
	)
	return report, nil
}

// VerifySingle returns the first valid address discovered for the prospect,
// or an exhausted result if the candidate pool yields nothing.
func (d *Driver) VerifySingle(ctx context.Context, jobID, firstName, lastName, domain string) (*SingleResult, error) {
	report, err := d.VerifyEmails(ctx, jobID, firstName, lastName, domain)
	if err != nil {
		return nil, err
	}
	if len(report.ValidEmails) == 0 {
		return &SingleResult{Status: SingleStatusExhausted}, nil
	}
	return &SingleResult{ValidEmail: report.ValidEmails[0], Status: SingleStatusFound}, nil
}
