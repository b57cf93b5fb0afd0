package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/studyhelper/studyhelper-api/internal/models"
	appErrors "github.com/studyhelper/studyhelper-api/pkg/errors"
	"github.com/studyhelper/studyhelper-api/pkg/export"
)

type exportRequestStore interface {
	List(ctx context.Context, filter models.RequestFilter) []models.Request
}

// ExportFile is a rendered export ready to stream to the client.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the request collection as CSV or PDF reports for
// the fulfiller dashboard.
type ExportService struct {
	store  exportRequestStore
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(store exportRequestStore, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		store:  store,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

var exportHeaders = []string{"ID", "Requester", "Category", "Topic", "Material", "Difficulty", "Due Date", "Status", "Attachments", "Created"}

// Export renders all requests in the given format. Fulfiller only.
func (s *ExportService) Export(ctx context.Context, format string, actor *models.JWTClaims) (*ExportFile, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleFulfiller {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the fulfiller can export requests")
	}

	dataset := buildDataset(s.store.List(ctx, models.RequestFilter{}))
	stamp := time.Now().UTC().Format("2006-01-02")

	switch format {
	case "csv":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render CSV export")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("requests-%s.csv", stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case "pdf":
		data, err := s.pdf.Render(dataset, "Material Requests")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render PDF export")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("requests-%s.pdf", stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format, use csv or pdf")
	}
}

func buildDataset(requests []models.Request) export.Dataset {
	rows := make([]map[string]string, 0, len(requests))
	for _, req := range requests {
		rows = append(rows, map[string]string{
			"ID":          strconv.Itoa(req.ID),
			"Requester":   req.RequesterName,
			"Category":    req.Category,
			"Topic":       req.Topic,
			"Material":    req.MaterialKind,
			"Difficulty":  req.Difficulty,
			"Due Date":    req.DueDate,
			"Status":      string(req.Status),
			"Attachments": strconv.Itoa(len(req.Attachments)),
			"Created":     req.CreatedAt.Format("2006-01-02"),
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}
