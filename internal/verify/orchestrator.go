// Package verify drives candidate email lists through the remote bulk
// verification service: upload, start, poll, download results, cleanup.
package verify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/pkg/bulkverify"
)

const (
	defaultPollInterval    = 10 * time.Second
	defaultMaxPollAttempts = 300
	cleanupTimeout         = 30 * time.Second
)

// Orchestrator runs one upload -> verify -> poll -> download -> delete cycle
// for a single chunk of candidate addresses.
type Orchestrator struct {
	client          bulkverify.Client
	pollInterval    time.Duration
	maxPollAttempts int
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithPollInterval overrides the fixed delay between status polls.
func WithPollInterval(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithMaxPollAttempts overrides the polling attempt ceiling. The ceiling is
// always finite; hitting it is a normal timed-out outcome, not an error.
func WithMaxPollAttempts(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxPollAttempts = n
		}
	}
}

// NewOrchestrator creates an Orchestrator over the given client.
func NewOrchestrator(client bulkverify.Client, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		client:          client,
		pollInterval:    defaultPollInterval,
		maxPollAttempts: defaultMaxPollAttempts,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// BatchOutcome is the result of one orchestrated chunk.
type BatchOutcome struct {
	Slug        string
	TotalEmails int
	// TimedOut is set when polling hit the attempt ceiling without the list
	// completing. The chunk yields no valid emails in that case.
	TimedOut bool
	// UnexpectedStatus records a vendor status other than Verifying,
	// Processing, or Completed that ended polling early.
	UnexpectedStatus string
	ValidEmails      []string
}

// RunBatch verifies one chunk of candidates. Once the upload has succeeded,
// the remote list is deleted before RunBatch returns on every path, including
// errors and timeouts; cleanup runs on a detached context so caller
// cancellation cannot leak the list at the vendor.
func (o *Orchestrator) RunBatch(ctx context.Context, jobID string, emails []string) (outcome *BatchOutcome, err error) {
	log := zap.L().With(
		zap.String("job_id", jobID),
		zap.Int("chunk_size", len(emails)),
	)

	upload, err := o.client.UploadList(ctx, emails)
	if err != nil {
		// Nothing reached the vendor; nothing to clean.
		return nil, err
	}
	outcome = &BatchOutcome{Slug: upload.Slug, TotalEmails: upload.TotalEmails}
	log = log.With(zap.String("slug", upload.Slug))
	log.Info("list uploaded", zap.Int("total_emails", upload.TotalEmails))

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		o.client.DeleteList(cleanupCtx, upload.Slug)
		log.Debug("list deleted")
	}()

	if err := o.client.StartVerification(ctx, upload.Slug); err != nil {
		return outcome, err
	}

	completed, err := o.poll(ctx, log, outcome)
	if err != nil {
		return outcome, err
	}
	if !completed {
		return outcome, nil
	}

	results, err := o.client.GetResults(ctx, upload.Slug)
	if err != nil {
		return outcome, err
	}

	// Only the valid category matters for the find-first-valid path; the
	// other URLs are available but left untouched.
	valid, err := o.client.DownloadCategory(ctx, results.ValidFileURL)
	if err != nil {
		return outcome, err
	}
	outcome.ValidEmails = valid
	log.Info("chunk verified", zap.Int("valid", len(valid)))
	return outcome, nil
}

// poll checks the list status on a fixed interval up to the attempt ceiling.
// It reports whether the list reached Completed.
func (o *Orchestrator) poll(ctx context.Context, log *zap.Logger, outcome *BatchOutcome) (bool, error) {
	for attempt := 1; attempt <= o.maxPollAttempts; attempt++ {
		status, err := o.client.GetStatus(ctx, outcome.Slug)
		if err != nil {
			return false, err
		}

		switch status.Status {
		case bulkverify.ListStatusCompleted:
			return true, nil
		case bulkverify.ListStatusVerifying, bulkverify.ListStatusProcessing:
			log.Debug("verification in progress",
				zap.Int("attempt", attempt),
				zap.Int("verified", status.TotalVerified),
				zap.Int("total", status.TotalEmails),
			)
		default:
			outcome.UnexpectedStatus = status.Status
			log.Warn("unexpected list status, abandoning poll",
				zap.String("status", status.Status),
			)
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(o.pollInterval):
		}
	}

	outcome.TimedOut = true
	log.Warn("polling ceiling reached without completion",
		zap.Int("max_attempts", o.maxPollAttempts),
		zap.Duration("interval", o.pollInterval),
	)
	return false, nil
}
