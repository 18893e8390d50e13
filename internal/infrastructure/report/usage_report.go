// Package report writes spreadsheet exports of voucher usage.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
)

const (
	SummarySheet = "Voucher"
	UsageSheet   = "Usage"
)

var usageHeaders = []string{"Time", "Action", "Actor type", "Actor ID", "IP address", "User agent", "Details"}

// UsageReportWriter renders a voucher's usage log as an xlsx workbook
type UsageReportWriter struct {
	location *time.Location
	logger   *zap.Logger
}

// NewUsageReportWriter creates a writer that prints times in loc (UTC when nil)
func NewUsageReportWriter(loc *time.Location, logger *zap.Logger) *UsageReportWriter {
	if loc == nil {
		loc = time.UTC
	}
	return &UsageReportWriter{location: loc, logger: logger}
}

// WriteUsage implements port.UsageReportWriter
func (w *UsageReportWriter) WriteUsage(ctx context.Context, v *entity.Voucher, entries []*entity.UsageLogEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if _, err := f.NewSheet(UsageSheet); err != nil {
		return nil, fmt.Errorf("failed to create usage sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	summary := [][2]interface{}{
		{"Voucher number", v.VoucherNumber},
		{"Status", string(v.Status)},
		{"Booking", fmt.Sprintf("%s %s", v.BookingType, v.BookingID)},
		{"Partner", v.PartnerID},
		{"Customer", v.Customer.Name},
		{"Valid from", w.format(v.ValidFrom)},
		{"Valid until", w.format(v.ValidUntil)},
		{"Entries", len(entries)},
	}
	for i, row := range summary {
		w.setRow(f, SummarySheet, i+1, row[0], row[1])
	}
	if err := f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(summary)), bold); err != nil {
		w.logger.Warn("Failed to style summary", zap.Error(err))
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", 18); err != nil {
		w.logger.Warn("Failed to size summary column", zap.Error(err))
	}
	if err := f.SetColWidth(SummarySheet, "B", "B", 40); err != nil {
		w.logger.Warn("Failed to size summary column", zap.Error(err))
	}

	header := make([]interface{}, len(usageHeaders))
	for i, h := range usageHeaders {
		header[i] = h
	}
	w.setRow(f, UsageSheet, 1, header...)
	lastCol, _ := excelize.ColumnNumberToName(len(usageHeaders))
	if err := f.SetCellStyle(UsageSheet, "A1", lastCol+"1", bold); err != nil {
		w.logger.Warn("Failed to style usage header", zap.Error(err))
	}
	if err := f.SetColWidth(UsageSheet, "A", lastCol, 20); err != nil {
		w.logger.Warn("Failed to size usage columns", zap.Error(err))
	}
	if err := f.SetPanes(UsageSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		w.logger.Warn("Failed to freeze usage header", zap.Error(err))
	}

	for i, e := range entries {
		w.setRow(f, UsageSheet, i+2,
			w.format(e.CreatedAt),
			string(e.Action),
			string(e.ActorType),
			e.ActorID,
			e.IPAddress,
			e.UserAgent,
			metadataText(e.Metadata),
		)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	w.logger.Debug("Usage report written",
		zap.String("voucher_number", v.VoucherNumber),
		zap.Int("entries", len(entries)))
	return buf.Bytes(), nil
}

func (w *UsageReportWriter) setRow(f *excelize.File, sheet string, row int, values ...interface{}) {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		w.logger.Warn("Invalid row", zap.Int("row", row), zap.Error(err))
		return
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		w.logger.Warn("Failed to set row",
			zap.String("sheet", sheet),
			zap.Int("row", row),
			zap.Error(err))
	}
}

func (w *UsageReportWriter) format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(w.location).Format("2006-01-02 15:04:05")
}

// metadataText prints metadata as compact JSON with stable key order
func metadataText(m map[string]interface{}) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		val, err := json.Marshal(m[k])
		if err != nil {
			val = []byte(fmt.Sprintf("%q", fmt.Sprint(m[k])))
		}
		if i > 0 {
			out += ", "
		}
		out += k + "=" + string(val)
	}
	return out
}

// Verify interface compliance
var _ port.UsageReportWriter = (*UsageReportWriter)(nil)
