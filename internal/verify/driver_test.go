package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector-cli/internal/pattern"
	"github.com/sells-group/prospector-cli/pkg/bulkverify"
)

func newTestDriver(mock *mockClient, opts ...DriverOption) *Driver {
	orch := fastOrchestrator(mock)
	return NewDriver(pattern.New(), orch, opts...)
}

func TestVerifyEmails_FirstChunkHit(t *testing.T) {
	mock := &mockClient{
		downloadCategoryFn: func(ctx context.Context, fileURL string) ([]string, error) {
			return []string{"jane.smith@example.com"}, nil
		},
	}
	d := newTestDriver(mock)

	report, err := d.VerifyEmails(context.Background(), "job-1", "Jane", "Smith", "example.com")
	require.NoError(t, err)
	assert.Equal(t, "job-1", report.JobID)
	assert.Equal(t, []string{"jane.smith@example.com"}, report.ValidEmails)
	assert.Equal(t, 1, report.TotalValid)
	assert.Equal(t, 1, report.BatchesProcessed)
	assert.Contains(t, report.GeneratedEmails, "jane.smith@example.com")
	assert.Equal(t, len(report.GeneratedEmails), report.TotalGenerated)
}

func TestVerifyEmails_EmptyPool(t *testing.T) {
	mock := &mockClient{}
	d := newTestDriver(mock)

	report, err := d.VerifyEmails(context.Background(), "job-1", "...", "!!!", "example.com")
	require.NoError(t, err)
	assert.Zero(t, report.TotalGenerated)
	assert.Zero(t, report.BatchesProcessed)
	assert.Empty(t, mock.callLog(), "an empty pool must not touch the network")
}

func TestVerifyEmails_EarlyExitAcrossChunks(t *testing.T) {
	uploads := 0
	mock := &mockClient{
		uploadListFn: func(ctx context.Context, emails []string) (*bulkverify.UploadResponse, error) {
			uploads++
			return &bulkverify.UploadResponse{Slug: "list-1", TotalEmails: len(emails)}, nil
		},
		downloadCategoryFn: func(ctx context.Context, fileURL string) ([]string, error) {
			// Only the second chunk yields a hit.
			if uploads == 2 {
				return []string{"jsmith@example.com"}, nil
			}
			return nil, nil
		},
	}
	// Chunks of 3 over the full tiered pool.
	d := newTestDriver(mock, WithChunkSize(3), WithPoolSize(47))

	report, err := d.VerifyEmails(context.Background(), "job-1", "Jane", "Smith", "example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, report.BatchesProcessed, "stops at the first chunk with a valid address")
	assert.Equal(t, 2, uploads, "later chunks are never uploaded")
	assert.Equal(t, []string{"jsmith@example.com"}, report.ValidEmails)
	assert.Greater(t, report.TotalGenerated, 6, "pool extends beyond the processed chunks")
}

func TestVerifyEmails_AllChunksExhausted(t *testing.T) {
	mock := &mockClient{}
	d := newTestDriver(mock, WithChunkSize(10), WithPoolSize(25))

	report, err := d.VerifyEmails(context.Background(), "job-1", "Jane", "Smith", "example.com")
	require.NoError(t, err)
	assert.Empty(t, report.ValidEmails)
	assert.Equal(t, 3, report.BatchesProcessed)
	assert.Equal(t, 25, report.TotalGenerated)
}

func TestVerifyEmails_PartialReportOnFailure(t *testing.T) {
	uploads := 0
	mock := &mockClient{
		uploadListFn: func(ctx context.Context, emails []string) (*bulkverify.UploadResponse, error) {
			uploads++
			if uploads == 2 {
				return nil, errors.New("vendor unavailable")
			}
			return &bulkverify.UploadResponse{Slug: "list-1", TotalEmails: len(emails)}, nil
		},
	}
	d := newTestDriver(mock, WithChunkSize(5), WithPoolSize(20))

	report, err := d.VerifyEmails(context.Background(), "job-1", "Jane", "Smith", "example.com")
	require.Error(t, err)
	require.NotNil(t, report, "the partial report survives a mid-run failure")
	assert.Equal(t, 1, report.BatchesProcessed)
	assert.Equal(t, 20, report.TotalGenerated)
}

func TestVerifyEmails_PoolDefaultsToChunkSize(t *testing.T) {
	mock := &mockClient{}
	d := newTestDriver(mock, WithChunkSize(8))

	report, err := d.VerifyEmails(context.Background(), "job-1", "Jane", "Smith", "example.com")
	require.NoError(t, err)
	assert.Equal(t, 8, report.TotalGenerated)
	assert.Equal(t, 1, report.BatchesProcessed)
}

func TestVerifySingle(t *testing.T) {
	mock := &mockClient{
		downloadCategoryFn: func(ctx context.Context, fileURL string) ([]string, error) {
			return []string{"jane.smith@example.com", "jsmith@example.com"}, nil
		},
	}
	d := newTestDriver(mock)

	result, err := d.VerifySingle(context.Background(), "job-1", "Jane", "Smith", "example.com")
	require.NoError(t, err)
	assert.Equal(t, SingleStatusFound, result.Status)
	assert.Equal(t, "jane.smith@example.com", result.ValidEmail)
}

func TestVerifySingle_Exhausted(t *testing.T) {
	mock := &mockClient{}
	d := newTestDriver(mock)

	result, err := d.VerifySingle(context.Background(), "job-1", "Jane", "Smith", "example.com")
	require.NoError(t, err)
	assert.Equal(t, SingleStatusExhausted, result.Status)
	assert.Empty(t, result.ValidEmail)
}
