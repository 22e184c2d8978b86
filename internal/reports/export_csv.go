package reports

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	_, err := s.buf.WriteString(line)
	return err
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

func (s *csvStreamer) Close() error {
	return s.Flush()
}

// WriteEtat104CSV streams a built report as CSV, one row per client plus the
// totals block.
func WriteEtat104CSV(w io.Writer, report Etat104Report) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeComment(fmt.Sprintf("# Report: Etat 104 | Period: %04d-%02d", report.Year, report.Month)); err != nil {
		return err
	}
	if err := streamer.writeComment(fmt.Sprintf("# Generated: %s", report.GeneratedAt.Format("2006-01-02 15:04:05"))); err != nil {
		return err
	}
	if err := streamer.writeRow([]string{"Client ID", "Client Name", "Invoices", "Subtotal", "Tax Total", "Total"}); err != nil {
		return err
	}
	for _, row := range report.Rows {
		if err := streamer.writeRow([]string{
			strconv.FormatInt(row.ClientID, 10),
			row.ClientName,
			strconv.Itoa(row.InvoiceCount),
			formatDecimal(row.Subtotal),
			formatDecimal(row.TaxTotal),
			formatDecimal(row.Total),
		}); err != nil {
			return err
		}
	}
	if err := streamer.writeRow([]string{"", "", "", "", "", ""}); err != nil {
		return err
	}
	totalsRows := [][]string{
		{"", report.Totals.ClientName, strconv.Itoa(report.Totals.InvoiceCount), formatDecimal(report.Totals.Subtotal), formatDecimal(report.Totals.TaxTotal), formatDecimal(report.Totals.Total)},
		{"", "TVA deductible", "", "", formatDecimal(report.TVADeductible), ""},
		{"", "TVA due", "", "", formatDecimal(report.TVADue), ""},
	}
	for _, row := range totalsRows {
		if err := streamer.writeRow(row); err != nil {
			return err
		}
	}
	return streamer.Close()
}

func formatDecimal(v decimal.Decimal) string {
	return v.StringFixed(2)
}
