package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/core"
	"github.com/joseph-ayodele/expense-tracker/internal/entity"
	"github.com/joseph-ayodele/expense-tracker/internal/repository"
)

type fakeProcessor struct {
	res *core.Result
	err error
}

func (f fakeProcessor) ProcessReceipt(context.Context, string) (*core.Result, error) {
	return f.res, f.err
}

type fakeExporter struct {
	from, to string
	err      error
}

func (f *fakeExporter) ExportExpensesXLSX(_ context.Context, from, to string) ([]byte, error) {
	f.from, f.to = from, to
	if f.err != nil {
		return nil, f.err
	}
	return []byte("PK-xlsx"), nil
}

type env struct {
	client *ReceiptPipelineClient
	conn   *grpc.ClientConn
	jobs   repository.ReceiptJobRepository
}

func start(t *testing.T, proc fakeProcessor, exp *fakeExporter) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{
		Driver:     repository.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "server.db"),
	}, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { repository.Close(db, logger) })
	if err := repository.Migrate(ctx, db, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	jobs := repository.NewReceiptJobRepository(db, logger)
	svc := NewPipelineService(proc, jobs, repository.NewExpenseRepository(db, logger), exp, logger)

	lis := bufconn.Listen(1 << 20)
	gs, hs := New(svc, logger)
	sctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Serve(sctx, gs, hs, lis, logger)
	}()
	t.Cleanup(func() { cancel(); <-done })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &env{client: NewReceiptPipelineClient(conn), conn: conn, jobs: jobs}
}

func TestProcessReceipt_RPC(t *testing.T) {
	vendor, amount := "Walmart", 6.21
	jobID := uuid.New()
	proc := fakeProcessor{res: &core.Result{
		Job:      &entity.ReceiptJob{ID: jobID, Status: "completed"},
		Strategy: "heuristic",
		Fields:   entity.ExtractedFields{Vendor: &vendor, Amount: &amount, Items: []entity.LineItem{}, Confidence: 0.9},
	}}
	e := start(t, proc, &fakeExporter{})

	out, err := e.client.ProcessReceipt(context.Background(), "/in/walmart.png")
	if err != nil {
		t.Fatalf("rpc: %v", err)
	}
	m := out.AsMap()
	if m["strategy"] != "heuristic" {
		t.Fatalf("strategy = %v", m["strategy"])
	}
	fields := m["fields"].(map[string]any)
	if fields["vendor"] != "Walmart" || fields["amount"] != 6.21 {
		t.Fatalf("fields = %v", fields)
	}
	job := m["job"].(map[string]any)
	if job["id"] != jobID.String() {
		t.Fatalf("job id = %v", job["id"])
	}
}

func TestProcessReceipt_RPCErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		err  error
		want codes.Code
	}{
		{"empty path", " ", nil, codes.InvalidArgument},
		{"unsupported", "/in/a.txt", common.NewAppError("UNSUPPORTED_FILE", "a.txt", common.ErrUnsupportedFile), codes.InvalidArgument},
		{"too large", "/in/big.png", common.ErrFileTooLarge, codes.InvalidArgument},
		{"pipeline", "/in/a.png", errors.New("ocr: tesseract missing"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := start(t, fakeProcessor{err: tt.err}, &fakeExporter{})
			_, err := e.client.ProcessReceipt(context.Background(), tt.path)
			if status.Code(err) != tt.want {
				t.Fatalf("code = %v, want %v (%v)", status.Code(err), tt.want, err)
			}
		})
	}
}

func TestGetReceiptJob_RPC(t *testing.T) {
	e := start(t, fakeProcessor{}, &fakeExporter{})
	ctx := context.Background()

	job, err := e.jobs.Create(ctx, repository.CreateReceiptJobRequest{
		SourcePath: "/data/receipts/x.png", OriginalName: "x.png", ContentHash: "abc",
	})
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.client.GetReceiptJob(ctx, job.ID.String())
	if err != nil {
		t.Fatalf("rpc: %v", err)
	}
	m := out.AsMap()
	got := m["job"].(map[string]any)
	if got["status"] != "pending" || got["original_name"] != "x.png" {
		t.Fatalf("job = %v", got)
	}
	if exps, ok := m["expenses"].([]any); !ok || len(exps) != 0 {
		t.Fatalf("expenses = %v", m["expenses"])
	}

	if _, err := e.client.GetReceiptJob(ctx, uuid.NewString()); status.Code(err) != codes.NotFound {
		t.Fatalf("missing job: %v", err)
	}
	if _, err := e.client.GetReceiptJob(ctx, "nope"); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("bad id: %v", err)
	}
}

func TestExportExpenses_RPC(t *testing.T) {
	exp := &fakeExporter{}
	e := start(t, fakeProcessor{}, exp)

	data, err := e.client.ExportExpenses(context.Background(), "2024-01-01", "2024-01-31")
	if err != nil {
		t.Fatalf("rpc: %v", err)
	}
	if string(data) != "PK-xlsx" {
		t.Fatalf("data = %q", data)
	}
	if exp.from != "2024-01-01" || exp.to != "2024-01-31" {
		t.Fatalf("window = %s..%s", exp.from, exp.to)
	}

	if _, err := e.client.ExportExpenses(context.Background(), "2024/01/01", ""); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("bad date code = %v", status.Code(err))
	}
	if exp.from != "2024-01-01" {
		t.Fatal("exporter should not run for a malformed date")
	}

	exp.err = common.NewAppError("INVALID_INPUT", "from is after to", common.ErrInvalidInput)
	if _, err := e.client.ExportExpenses(context.Background(), "2024-02-01", "2024-01-01"); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v", status.Code(err))
	}
}

func TestHealth_RPC(t *testing.T) {
	e := start(t, fakeProcessor{}, &fakeExporter{})
	resp, err := healthpb.NewHealthClient(e.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v", resp.GetStatus())
	}
}
