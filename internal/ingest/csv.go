package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fernwick/ledgerloom/internal/model"
)

// CSVReader parses bank charge exports in CSV form. Column positions are
// resolved from the header row, so exports from different issuers work as
// long as they label date, description, and amount.
type CSVReader struct{}

// NewCSVReader creates a new charge CSV reader.
func NewCSVReader() *CSVReader {
	return &CSVReader{}
}

// header aliases accepted for each logical column.
var (
	dateHeaders     = []string{"date", "transaction date", "posted date"}
	merchantHeaders = []string{"description", "merchant", "name", "payee"}
	memoHeaders     = []string{"memo", "notes", "extended description"}
	amountHeaders   = []string{"amount"}
	idHeaders       = []string{"id", "transaction id", "reference"}
)

func findColumn(header []string, aliases []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, a := range aliases {
			if h == a {
				return i
			}
		}
	}
	return -1
}

// ParseFile parses a charge CSV export and returns normalized records.
// Rows that cannot be parsed are logged and skipped rather than aborting
// the whole import.
func (r *CSVReader) ParseFile(ctx context.Context, reader io.Reader) ([]model.ChargeRecord, error) {
	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	dateCol := findColumn(header, dateHeaders)
	merchantCol := findColumn(header, merchantHeaders)
	memoCol := findColumn(header, memoHeaders)
	amountCol := findColumn(header, amountHeaders)
	idCol := findColumn(header, idHeaders)
	if dateCol < 0 || merchantCol < 0 || amountCol < 0 {
		return nil, fmt.Errorf("CSV header missing required columns (have %v)", header)
	}

	var records []model.ChargeRecord
	var skipped int
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		field := func(col int) string {
			if col < 0 || col >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[col])
		}

		date, ok := parseDate(field(dateCol))
		if !ok {
			slog.Warn("Skipping row with unparseable date", "date", field(dateCol))
			skipped++
			continue
		}
		amount, err := ParseAmountMinor(field(amountCol))
		if err != nil {
			slog.Warn("Skipping row with unparseable amount", "amount", field(amountCol), "error", err)
			skipped++
			continue
		}

		rec := model.ChargeRecord{
			Date:        date,
			ID:          field(idCol),
			Merchant:    field(merchantCol),
			Memo:        field(memoCol),
			Direction:   detectDirection(amount, field(merchantCol), field(memoCol)),
			AmountMinor: amount,
		}
		rec.Hash = rec.GenerateHash()
		records = append(records, rec)
	}

	records = Dedupe(records)
	slog.Info("Parsed charge CSV",
		"records", len(records),
		"skipped", skipped)
	return records, nil
}
