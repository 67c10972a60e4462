package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/TechFest-2026/exam-session-service/internal/models"
)

// ExportService handles spreadsheet import of question banks and export of
// finalized, ranked results.
type ExportService interface {
	ImportQuestionsFromExcel(ctx context.Context, reader io.Reader) (*QuestionImportResult, error)
	ExportResultsToExcel(ctx context.Context) ([]byte, error)
	ExportResultsToCSV(ctx context.Context) ([]byte, error)
}

type exportService struct {
	sessions SessionService
	bank     QuestionBankService
	logger   *slog.Logger
}

func NewExportService(sessions SessionService, bank QuestionBankService, logger *slog.Logger) ExportService {
	return &exportService{
		sessions: sessions,
		bank:     bank,
		logger:   logger,
	}
}

// ===== IMPORT =====

// ImportQuestionsFromExcel reads the first sheet of an authoring workbook.
// Expected columns: prompt, choice_a..choice_d (optional), answer. Rows with
// no choices become free-text questions.
func (s *exportService) ImportQuestionsFromExcel(ctx context.Context, reader io.Reader) (*QuestionImportResult, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewValidationError("file", "Excel file has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, NewValidationError("file", "Excel must have a header row and at least one data row", len(rows))
	}

	headerMap := make(map[string]int)
	for i, header := range rows[0] {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, col := range []string{"prompt", "answer"} {
		if _, exists := headerMap[col]; !exists {
			return nil, NewValidationError("headers", fmt.Sprintf("missing required column: %s", col), col)
		}
	}

	items := make([]models.RawQuestionItem, 0, len(rows)-1)
	for _, row := range rows[1:] {
		item := models.RawQuestionItem{
			Prompt: cellAt(row, headerMap, "prompt"),
			Answer: cellAt(row, headerMap, "answer"),
		}
		for _, col := range []string{"choice_a", "choice_b", "choice_c", "choice_d"} {
			if choice := cellAt(row, headerMap, col); choice != "" {
				item.Choices = append(item.Choices, choice)
			}
		}
		items = append(items, item)
	}

	result, err := s.bank.ImportQuestions(ctx, items, models.SourceManual)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Excel import completed",
		"total_rows", result.Total,
		"success_count", result.SuccessCount,
		"error_count", result.ErrorCount)
	return result, nil
}

func cellAt(row []string, headerMap map[string]int, column string) string {
	idx, exists := headerMap[column]
	if !exists || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ===== EXPORT =====

var resultHeaders = []string{
	"Rank", "Name", "Roll No", "Email", "Score", "Total", "Submitted At", "Finish Reason",
}

func (s *exportService) ExportResultsToExcel(ctx context.Context) ([]byte, error) {
	results, err := s.sessions.ListFinalizedRanked(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)

	for i, header := range resultHeaders {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, result := range results {
		row := resultRow(result)
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Results exported to Excel", "rows", len(results))
	return buf.Bytes(), nil
}

func (s *exportService) ExportResultsToCSV(ctx context.Context) ([]byte, error) {
	results, err := s.sessions.ListFinalizedRanked(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(resultHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		row := make([]string, 0, len(resultHeaders))
		for _, value := range resultRow(result) {
			row = append(row, fmt.Sprint(value))
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	s.logger.Info("Results exported to CSV", "rows", len(results))
	return buf.Bytes(), nil
}

func resultRow(result *RankedResult) []interface{} {
	return []interface{}{
		result.Rank,
		result.Name,
		result.RollNo,
		result.Email,
		result.Score,
		result.Total,
		result.SubmittedAt.Format("2006-01-02 15:04:05"),
		string(result.Reason),
	}
}
