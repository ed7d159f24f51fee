package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"health-records-platform/internal/rag"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// maxExportEntries caps a single history export.
const maxExportEntries = 1000

// HistoryExportData is the serialized form of a report's query history.
type HistoryExportData struct {
	ReportID   string             `json:"report_id"`
	ExportDate time.Time          `json:"export_date"`
	Entries    []HistoryExportRow `json:"entries"`
}

type HistoryExportRow struct {
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	ActorID        string    `json:"actor_id"`
	Role           string    `json:"role"`
	CitedSequences []int     `json:"cited_sequences"`
	AskedAt        time.Time `json:"asked_at"`
}

// ExportService turns a report's query history into downloadable files.
type ExportService struct {
	history rag.HistoryStorage
}

func NewExportService(history rag.HistoryStorage) *ExportService {
	return &ExportService{history: history}
}

// BuildExport loads the report's history and converts it to export rows.
func (es *ExportService) BuildExport(ctx context.Context, reportID string) (*HistoryExportData, error) {
	entries, err := es.history.ListByReport(ctx, reportID, maxExportEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to load query history: %w", err)
	}

	rows := make([]HistoryExportRow, len(entries))
	for i, entry := range entries {
		rows[i] = HistoryExportRow{
			Question:       entry.Question,
			Answer:         entry.Answer,
			ActorID:        entry.ActorID,
			Role:           string(entry.Role),
			CitedSequences: entry.CitedSequences,
			AskedAt:        entry.AskedAt,
		}
	}

	return &HistoryExportData{
		ReportID:   reportID,
		ExportDate: time.Now().UTC(),
		Entries:    rows,
	}, nil
}

// StreamExport writes the export to the HTTP response in the requested
// format. Supported formats are "json" and "excel".
func (es *ExportService) StreamExport(c *gin.Context, data *HistoryExportData, format string) error {
	switch format {
	case "json":
		jsonData, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_history.json", data.ReportID))
		c.Header("Content-Length", strconv.Itoa(len(jsonData)))
		c.Data(http.StatusOK, "application/json", jsonData)

	case "excel":
		buf, err := es.buildWorkbook(data)
		if err != nil {
			return err
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_history.xlsx", data.ReportID))
		c.Header("Content-Length", strconv.Itoa(buf.Len()))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())

	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	return nil
}

func (es *ExportService) buildWorkbook(data *HistoryExportData) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Query History"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Asked At", "Actor ID", "Role", "Question", "Answer", "Cited Passages"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIdx, entry := range data.Entries {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), entry.AskedAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), entry.ActorID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), entry.Role)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), entry.Question)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), entry.Answer)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), formatSequences(entry.CitedSequences))
	}

	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "D", "E", 60)

	infoSheet := "Export Info"
	if _, err := f.NewSheet(infoSheet); err != nil {
		return nil, fmt.Errorf("failed to create info sheet: %w", err)
	}
	info := [][]interface{}{
		{"Report ID", data.ReportID},
		{"Export Date", data.ExportDate.Format("2006-01-02 15:04:05")},
		{"Total Entries", len(data.Entries)},
	}
	for i, row := range info {
		for j, cell := range row {
			f.SetCellValue(infoSheet, fmt.Sprintf("%c%d", 'A'+j, i+1), cell)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return &buf, nil
}

func formatSequences(seqs []int) string {
	if len(seqs) == 0 {
		return ""
	}
	parts := make([]string, len(seqs))
	for i, s := range seqs {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ", ")
}
