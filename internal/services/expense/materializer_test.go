package expense

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/entity"
)

type fakeExpenses struct {
	created []*entity.Expense
	err     error
}

func (f *fakeExpenses) Create(_ context.Context, e *entity.Expense) (*entity.Expense, error) {
	if f.err != nil {
		return nil, f.err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	f.created = append(f.created, e)
	return e, nil
}

func (f *fakeExpenses) ListByDateRange(context.Context, string, string) ([]*entity.Expense, error) {
	return f.created, nil
}

func (f *fakeExpenses) GetByReceiptJob(_ context.Context, id uuid.UUID) ([]*entity.Expense, error) {
	var out []*entity.Expense
	for _, e := range f.created {
		if e.ReceiptJobID != nil && *e.ReceiptJobID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeExpenses) Delete(_ context.Context, id uuid.UUID) error {
	for i, e := range f.created {
		if e.ID == id {
			f.created = append(f.created[:i], f.created[i+1:]...)
			return nil
		}
	}
	return common.ErrNotFound
}

type fakeResolver struct {
	vendors []string
	id      uuid.UUID
	err     error
}

func (f *fakeResolver) Resolve(_ context.Context, vendor string) (uuid.UUID, error) {
	f.vendors = append(f.vendors, vendor)
	return f.id, f.err
}

func ptr[T any](v T) *T { return &v }

func newTestMaterializer(exp *fakeExpenses, res *fakeResolver) *Materializer {
	clock := func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }
	return NewMaterializer(exp, res, slog.New(slog.NewTextHandler(io.Discard, nil)), WithClock(clock))
}

func TestMaterializeSkipsWithoutAmount(t *testing.T) {
	exp, res := &fakeExpenses{}, &fakeResolver{id: uuid.New()}
	m := newTestMaterializer(exp, res)
	out, err := m.Materialize(context.Background(), uuid.New(), entity.ExtractedFields{
		Vendor: ptr("Walmart"),
		Date:   ptr("2024-01-15"),
		Items:  []entity.LineItem{{Description: "MILK", Price: 3.5, Quantity: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Skipped || out.Expense != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if len(exp.created) != 0 || len(res.vendors) != 0 {
		t.Fatal("nothing should be written when the amount is missing")
	}
}

func TestMaterializeFull(t *testing.T) {
	exp, res := &fakeExpenses{}, &fakeResolver{id: uuid.New()}
	m := newTestMaterializer(exp, res)
	jobID := uuid.New()
	out, err := m.Materialize(context.Background(), jobID, entity.ExtractedFields{
		Vendor: ptr("Walmart"),
		Date:   ptr("2024-01-15"),
		Amount: ptr(5.75),
		Items: []entity.LineItem{
			{Description: "MILK", Price: 3.5, Quantity: 1},
			{Description: "BREAD", Price: 2.25, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	e := out.Expense
	if out.Skipped || e == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if e.Amount != 5.75 || e.Vendor != "Walmart" || e.Date != "2024-01-15" || e.Description != "MILK, BREAD" {
		t.Fatalf("expense = %+v", e)
	}
	if e.ReceiptJobID == nil || *e.ReceiptJobID != jobID || e.CategoryID != res.id {
		t.Fatalf("links = %+v", e)
	}
	if !reflect.DeepEqual(e.Tags, []string{"receipt-import", "auto-created"}) {
		t.Fatalf("tags = %v", e.Tags)
	}
	if !reflect.DeepEqual(res.vendors, []string{"Walmart"}) {
		t.Fatalf("resolver calls = %v", res.vendors)
	}
}

func TestMaterializeDefaults(t *testing.T) {
	exp, res := &fakeExpenses{}, &fakeResolver{id: uuid.New()}
	m := newTestMaterializer(exp, res)
	out, err := m.Materialize(context.Background(), uuid.New(), entity.ExtractedFields{Amount: ptr(12.0)})
	if err != nil {
		t.Fatal(err)
	}
	e := out.Expense
	if e.Vendor != UnknownVendor || e.Description != DefaultDescription || e.Date != "2025-03-14" {
		t.Fatalf("expense = %+v", e)
	}
	if !reflect.DeepEqual(res.vendors, []string{""}) {
		t.Fatalf("unknown vendor should resolve as Other, got %q", res.vendors)
	}
}

func TestMaterializeNotDeduplicated(t *testing.T) {
	exp, res := &fakeExpenses{}, &fakeResolver{id: uuid.New()}
	m := newTestMaterializer(exp, res)
	jobID := uuid.New()
	fields := entity.ExtractedFields{Amount: ptr(1.0)}
	for i := 0; i < 2; i++ {
		if _, err := m.Materialize(context.Background(), jobID, fields); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := exp.GetByReceiptJob(context.Background(), jobID)
	if len(got) != 2 {
		t.Fatalf("expenses for job = %d, want 2", len(got))
	}
}

func TestMaterializeErrors(t *testing.T) {
	boom := errors.New("boom")
	m := newTestMaterializer(&fakeExpenses{}, &fakeResolver{err: boom})
	if _, err := m.Materialize(context.Background(), uuid.New(), entity.ExtractedFields{Amount: ptr(1.0)}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	m = newTestMaterializer(&fakeExpenses{err: boom}, &fakeResolver{id: uuid.New()})
	if _, err := m.Materialize(context.Background(), uuid.New(), entity.ExtractedFields{Amount: ptr(1.0)}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestRevert(t *testing.T) {
	exp := &fakeExpenses{}
	m := newTestMaterializer(exp, &fakeResolver{id: uuid.New()})
	jobID := uuid.New()
	out, err := m.Materialize(context.Background(), jobID, entity.ExtractedFields{Amount: ptr(4.0)})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Revert(context.Background(), out.Expense); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if got, _ := exp.GetByReceiptJob(context.Background(), jobID); len(got) != 0 {
		t.Fatalf("expenses after revert = %d", len(got))
	}
	if err := m.Revert(context.Background(), out.Expense); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("second revert err = %v", err)
	}
	if err := m.Revert(context.Background(), nil); err != nil {
		t.Fatalf("nil revert: %v", err)
	}
}

func TestDescribe(t *testing.T) {
	items := []entity.LineItem{{Description: "A"}, {Description: "B"}, {Description: "C"}, {Description: "D"}, {Description: "E"}}
	if got := describe(items); got != "A, B, C +2 more" {
		t.Fatalf("describe = %q", got)
	}
}
