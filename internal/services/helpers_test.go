package services

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/mock"

	"backfill/internal/config"
	"backfill/internal/infrastructure"
	"backfill/internal/operations"
	"backfill/internal/reconcile"
	"backfill/internal/shared/testutil"
)

func zqmCSV(t *testing.T) []byte {
	return testutil.CSV(t,
		[]string{"Order", "Basic start date", "Basic finish date", "GR Qty", "Status"},
		[]string{"MO100", "01/02/2024", "01/09/2024", "0", "REL"},
		[]string{"MO200", "02/02/2024", "02/09/2024", "0", "REL TECO"},
		[]string{"MO300", "03/02/2024", "03/09/2024", "5", "REL"},
	)
}

func pmrCSV(t *testing.T) []byte {
	return testutil.CSV(t,
		[]string{"Manufacturing Order", "Product", "Staging Status", "Goods Issue Status"},
		[]string{"MO100", "P1", "Completed", "Completed"},
		[]string{"MO100", "P2", "Completed", "Completed"},
		[]string{"MO200", "P1", "Not Started", "Not Started"},
		[]string{"MO300", "P3", "Partially Completed", "Not Started"},
	)
}

func sohCSV(t *testing.T) []byte {
	return testutil.CSV(t,
		[]string{"Product", "Owner", "Quantity", "Stock Type", "Storage Type"},
		[]string{"P1", "MR9191", "10", "F1", "0010"},
		[]string{"P1", "MR9192", "0", "F1", "0010"},
		[]string{"P3", "MR9192", "4", "Q3", "2020"},
	)
}

func upload(name string, data []byte) FileUpload {
	return FileUpload{Name: name, Size: int64(len(data)), Reader: bytes.NewReader(data)}
}

func newTestService(t *testing.T, mutate ...func(*config.Config)) *ReconcileService {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	logger := infrastructure.NewLogger("error", io.Discard)
	store := operations.NewMemorySessionStore(cfg.Session, reconcile.NewOptions(cfg.Reconcile), nil, logger)
	manager := operations.NewManager(operations.NewDefaultRegistry(), nil, logger)
	return NewReconcileService(cfg, store, manager, nil, logger)
}

// MockSessionStore is a testify mock of operations.SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Create(ctx context.Context) (*operations.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*operations.Session), args.Error(1)
}

func (m *MockSessionStore) Get(ctx context.Context, id string) (*operations.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*operations.Session), args.Error(1)
}

func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSessionStore) Purge(ctx context.Context) int {
	return m.Called(ctx).Int(0)
}

func (m *MockSessionStore) Len() int {
	return m.Called().Int(0)
}
