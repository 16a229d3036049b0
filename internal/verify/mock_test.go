package verify

import (
	"context"
	"sync"

	"github.com/sells-group/prospector-cli/pkg/bulkverify"
)

// mockClient implements bulkverify.Client with overridable function fields
// and records every call in order so tests can assert lifecycle invariants.
type mockClient struct {
	mu    sync.Mutex
	calls []string

	loginFn             func(ctx context.Context) (*bulkverify.TokenPair, error)
	verifyEmailFn       func(ctx context.Context, email string) (*bulkverify.VerifyResult, error)
	uploadListFn        func(ctx context.Context, emails []string) (*bulkverify.UploadResponse, error)
	startVerificationFn func(ctx context.Context, slug string) error
	getStatusFn         func(ctx context.Context, slug string) (*bulkverify.StatusResponse, error)
	getResultsFn        func(ctx context.Context, slug string) (*bulkverify.ResultFiles, error)
	downloadCategoryFn  func(ctx context.Context, fileURL string) ([]string, error)
	deleteListFn        func(ctx context.Context, slug string)
	checkCreditsFn      func(ctx context.Context) (map[string]any, error)
}

func (m *mockClient) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *mockClient) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockClient) countCalls(name string) int {
	n := 0
	for _, c := range m.callLog() {
		if c == name {
			n++
		}
	}
	return n
}

func (m *mockClient) Login(ctx context.Context) (*bulkverify.TokenPair, error) {
	m.record("Login")
	if m.loginFn != nil {
		return m.loginFn(ctx)
	}
	return &bulkverify.TokenPair{Access: "tok"}, nil
}

func (m *mockClient) VerifyEmail(ctx context.Context, email string) (*bulkverify.VerifyResult, error) {
	m.record("VerifyEmail")
	if m.verifyEmailFn != nil {
		return m.verifyEmailFn(ctx, email)
	}
	return &bulkverify.VerifyResult{}, nil
}

func (m *mockClient) UploadList(ctx context.Context, emails []string) (*bulkverify.UploadResponse, error) {
	m.record("UploadList")
	if m.uploadListFn != nil {
		return m.uploadListFn(ctx, emails)
	}
	return &bulkverify.UploadResponse{Slug: "list-1", TotalEmails: len(emails)}, nil
}

func (m *mockClient) StartVerification(ctx context.Context, slug string) error {
	m.record("StartVerification")
	if m.startVerificationFn != nil {
		return m.startVerificationFn(ctx, slug)
	}
	return nil
}

func (m *mockClient) GetStatus(ctx context.Context, slug string) (*bulkverify.StatusResponse, error) {
	m.record("GetStatus")
	if m.getStatusFn != nil {
		return m.getStatusFn(ctx, slug)
	}
	return &bulkverify.StatusResponse{Status: bulkverify.ListStatusCompleted}, nil
}

func (m *mockClient) GetResults(ctx context.Context, slug string) (*bulkverify.ResultFiles, error) {
	m.record("GetResults")
	if m.getResultsFn != nil {
		return m.getResultsFn(ctx, slug)
	}
	return &bulkverify.ResultFiles{ValidFileURL: "/download/valid/list-1/"}, nil
}

func (m *mockClient) DownloadCategory(ctx context.Context, fileURL string) ([]string, error) {
	m.record("DownloadCategory")
	if m.downloadCategoryFn != nil {
		return m.downloadCategoryFn(ctx, fileURL)
	}
	return nil, nil
}

func (m *mockClient) DeleteList(ctx context.Context, slug string) {
	m.record("DeleteList")
	if m.deleteListFn != nil {
		m.deleteListFn(ctx, slug)
	}
}

func (m *mockClient) CheckCredits(ctx context.Context) (map[string]any, error) {
	m.record("CheckCredits")
	if m.checkCreditsFn != nil {
		return m.checkCreditsFn(ctx)
	}
	return map[string]any{"credits": float64(100)}, nil
}

var _ bulkverify.Client = (*mockClient)(nil)
