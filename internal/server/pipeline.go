package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/core/async"
	"github.com/joseph-ayodele/expense-tracker/internal/entity"
	"github.com/joseph-ayodele/expense-tracker/internal/repository"
)

// Exporter renders expenses in a date window as an XLSX workbook.
type Exporter interface {
	ExportExpensesXLSX(ctx context.Context, from, to string) ([]byte, error)
}

const maxPathRunes = 4096

type PipelineService struct {
	proc     async.PipelineProcessor
	jobs     repository.ReceiptJobRepository
	expenses repository.ExpenseRepository
	exporter Exporter
	logger   *slog.Logger
}

func NewPipelineService(
	proc async.PipelineProcessor,
	jobs repository.ReceiptJobRepository,
	expenses repository.ExpenseRepository,
	exporter Exporter,
	logger *slog.Logger,
) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineService{proc: proc, jobs: jobs, expenses: expenses, exporter: exporter, logger: logger}
}

// ProcessReceipt runs the pipeline synchronously on a server-local path.
func (s *PipelineService) ProcessReceipt(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	path := strings.TrimSpace(req.GetValue())
	v := common.NewValidator().Field("path", path, common.Required, common.MaxLength(maxPathRunes))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	res, err := s.proc.ProcessReceipt(ctx, path)
	if err != nil {
		s.logger.Warn("grpc.process_receipt.failed", "path", path, "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(processView{
		Job:        res.Job,
		Strategy:   res.Strategy,
		Fields:     res.Fields,
		Expense:    res.Expense,
		Skipped:    res.Skipped,
		SkipReason: res.SkipReason,
		OCR: ocrView{
			Method:     res.OCR.Method,
			SourceType: res.OCR.SourceType,
			Pages:      res.OCR.Pages,
			Confidence: res.OCR.Confidence,
			Quality:    res.OCR.Quality.Score,
			Issues:     res.OCR.Quality.Issues,
			Warnings:   res.OCR.Warnings,
		},
	})
}

// GetReceiptJob returns a job and any expenses it produced.
func (s *PipelineService) GetReceiptJob(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	raw := strings.TrimSpace(req.GetValue())
	v := common.NewValidator().Field("id", raw, common.Required, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	id := uuid.MustParse(raw)
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	exps, err := s.expenses.GetByReceiptJob(ctx, id)
	if err != nil {
		s.logger.Error("grpc.get_receipt_job.expenses_failed", "job_id", id, "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(jobView{Job: job, Expenses: exps})
}

// ExportExpenses takes {"from": "YYYY-MM-DD", "to": "YYYY-MM-DD"}; both are
// optional.
func (s *PipelineService) ExportExpenses(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error) {
	fields := req.GetFields()
	from := fields["from"].GetStringValue()
	to := fields["to"].GetStringValue()
	v := common.NewValidator().
		Field("from", from, common.DateOnly).
		Field("to", to, common.DateOnly)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	data, err := s.exporter.ExportExpensesXLSX(ctx, from, to)
	if err != nil {
		s.logger.Warn("grpc.export.failed", "from", from, "to", to, "error", err)
		return nil, common.ToStatus(err)
	}
	return wrapperspb.Bytes(data), nil
}

type ocrView struct {
	Method     string   `json:"method"`
	SourceType string   `json:"source_type"`
	Pages      int      `json:"pages"`
	Confidence float64  `json:"confidence"`
	Quality    int      `json:"quality_score"`
	Issues     []string `json:"quality_issues"`
	Warnings   []string `json:"warnings,omitempty"`
}

type processView struct {
	Job        *entity.ReceiptJob     `json:"job"`
	Strategy   string                 `json:"strategy"`
	Fields     entity.ExtractedFields `json:"fields"`
	Expense    *entity.Expense        `json:"expense,omitempty"`
	Skipped    bool                   `json:"skipped"`
	SkipReason string                 `json:"skip_reason,omitempty"`
	OCR        ocrView                `json:"ocr"`
}

type jobView struct {
	Job      *entity.ReceiptJob `json:"job"`
	Expenses []*entity.Expense  `json:"expenses"`
}

// toStruct converts a JSON-tagged value into a Struct via its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}
