package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/dimits-ts/syndisco/wool"
	"github.com/dimits-ts/syndisco/yarn"
)

// CSVDialect specifies the CSV format variant.
type CSVDialect string

const (
	// DialectStandard uses RFC 4180 compliant CSV (comma-separated, quoted strings).
	DialectStandard CSVDialect = "standard"

	// DialectExcel writes a UTF-8 BOM and CRLF line endings.
	DialectExcel CSVDialect = "excel"

	// DialectTSV uses tab-separated values instead of comma.
	DialectTSV CSVDialect = "tsv"
)

// ParseDialect returns the dialect named s. The empty string is standard.
func ParseDialect(s string) (CSVDialect, error) {
	switch d := CSVDialect(strings.ToLower(strings.TrimSpace(s))); d {
	case "", DialectStandard:
		return DialectStandard, nil
	case DialectExcel, DialectTSV:
		return d, nil
	default:
		return "", fmt.Errorf("unknown csv dialect %q (want standard, excel or tsv)", s)
	}
}

// CSVConfig specifies options for CSV export.
type CSVConfig struct {
	// Dialect specifies the CSV format variant.
	// Default: DialectStandard
	Dialect CSVDialect

	// IncludeHeader writes column headers as the first row.
	// Default: true
	IncludeHeader bool

	// TimestampFormat specifies the format for timestamp columns.
	// Default: time.RFC3339 (ISO 8601 format, compatible with R and Python).
	TimestampFormat string

	// NAString is the representation for missing/NA values.
	// Default: "NA" (compatible with R and Python pandas)
	NAString string

	// IncludeAttributes adds the speaker's persona attributes and prompt
	// instructions to every discussion row.
	// Default: false
	IncludeAttributes bool
}

// DefaultCSVConfig returns a CSVConfig with sensible defaults.
// Uses RFC 4180 standard format with ISO 8601 timestamps.
func DefaultCSVConfig() *CSVConfig {
	return &CSVConfig{
		Dialect:         DialectStandard,
		IncludeHeader:   true,
		TimestampFormat: time.RFC3339,
		NAString:        "NA",
	}
}

// discussionColumns is the fixed header of discussion exports. Column
// names are snake_case so they load as valid identifiers in R and pandas.
var discussionColumns = []string{
	"discussion_id",
	"config_hash",
	"ordinal",
	"message_id",
	"speaker",
	"is_moderator",
	"model",
	"text",
	"timestamp",
	"turn_policy",
	"context_length",
	"status",
	"termination_reason",
}

var attributeColumns = []string{"speaker_attributes", "speaker_instructions"}

var annotationColumns = []string{
	"annotation_id",
	"discussion_id",
	"annotator",
	"annotator_model",
	"include_moderator",
	"ordinal",
	"speaker",
	"message",
	"judgment",
	"error",
}

// CSVWriter writes discussion messages or annotation items as rows. One
// writer handles one kind of record; the header is chosen by the first
// write.
type CSVWriter struct {
	config      *CSVConfig
	out         io.Writer
	writer      *csv.Writer
	headerDone  bool
	rowsWritten int
}

// NewCSVWriter creates a new CSVWriter that writes to the given io.Writer.
// If config is nil, DefaultCSVConfig() is used.
func NewCSVWriter(w io.Writer, config *CSVConfig) *CSVWriter {
	if config == nil {
		config = DefaultCSVConfig()
	}
	if config.TimestampFormat == "" {
		config.TimestampFormat = time.RFC3339
	}

	csvWriter := csv.NewWriter(w)
	switch config.Dialect {
	case DialectTSV:
		csvWriter.Comma = '\t'
	case DialectExcel:
		csvWriter.UseCRLF = true
	}

	return &CSVWriter{config: config, out: w, writer: csvWriter}
}

func (cw *CSVWriter) writeHeader(columns []string) error {
	if cw.headerDone {
		return nil
	}
	cw.headerDone = true
	if cw.config.Dialect == DialectExcel {
		if _, err := io.WriteString(cw.out, "\ufeff"); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}
	if !cw.config.IncludeHeader {
		return nil
	}
	if err := cw.writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	return nil
}

func (cw *CSVWriter) discussionHeader() []string {
	if !cw.config.IncludeAttributes {
		return discussionColumns
	}
	return append(append([]string{}, discussionColumns...), attributeColumns...)
}

// WriteDiscussion writes one row per message of d, in ordinal order.
func (cw *CSVWriter) WriteDiscussion(d *yarn.Discussion) error {
	if err := cw.writeHeader(cw.discussionHeader()); err != nil {
		return err
	}

	profiles := make(map[string]yarn.ActorProfile, len(d.Config.Users)+1)
	for _, u := range d.Config.Users {
		profiles[u.Name] = u
	}
	if d.Config.Moderator != nil {
		profiles[d.Config.Moderator.Name] = *d.Config.Moderator
	}

	na := cw.config.NAString
	for _, m := range d.History(0) {
		row := []string{
			cw.formatString(d.ID, na),
			cw.formatString(d.Config.ConfigHash, na),
			strconv.Itoa(m.Ordinal),
			cw.formatString(m.ID, na),
			cw.formatString(m.Speaker, na),
			cw.formatBool(IsModerator(d, m.Speaker)),
			cw.formatString(m.Model, na),
			m.Text,
			cw.formatTime(m.Timestamp),
			cw.formatString(d.Config.TurnPolicy, na),
			strconv.Itoa(d.Config.ContextLength),
			cw.formatString(string(d.Status), na),
			cw.formatString(d.TerminationReason, na),
		}
		if cw.config.IncludeAttributes {
			p, ok := profiles[m.Speaker]
			if ok {
				row = append(row, cw.formatString(strings.Join(p.Attributes, "; "), na), cw.formatString(p.Instructions, na))
			} else {
				row = append(row, na, na)
			}
		}
		if err := cw.writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
		cw.rowsWritten++
	}
	return nil
}

// WriteAnnotation writes one row per annotation item.
func (cw *CSVWriter) WriteAnnotation(a *yarn.Annotation) error {
	if err := cw.writeHeader(annotationColumns); err != nil {
		return err
	}
	na := cw.config.NAString
	for _, it := range a.Items {
		row := []string{
			cw.formatString(a.ID, na),
			cw.formatString(a.DiscussionID, na),
			cw.formatString(a.Annotator.Name, na),
			cw.formatString(a.Annotator.Model, na),
			cw.formatBool(a.IncludeModerator),
			strconv.Itoa(it.Ordinal),
			cw.formatString(it.Speaker, na),
			it.Message,
			cw.formatString(it.Judgment, na),
			cw.formatString(it.Error, na),
		}
		if err := cw.writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
		cw.rowsWritten++
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (cw *CSVWriter) Flush() error {
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

// RowsWritten returns the number of data rows written (excluding header).
func (cw *CSVWriter) RowsWritten() int {
	return cw.rowsWritten
}

// formatString returns the string value or NA if empty.
func (cw *CSVWriter) formatString(s, na string) string {
	if s == "" {
		return na
	}
	return s
}

func (cw *CSVWriter) formatTime(t time.Time) string {
	if t.IsZero() {
		return cw.config.NAString
	}
	return t.UTC().Format(cw.config.TimestampFormat)
}

// formatBool formats a boolean as "TRUE" or "FALSE" for R/Python compatibility.
func (cw *CSVWriter) formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// IsModerator reports whether speaker is the moderator of d.
func IsModerator(d *yarn.Discussion, speaker string) bool {
	return speaker == wool.ModeratorName || (d.Moderator != "" && speaker == d.Moderator)
}

// WriteDiscussionsCSV exports every discussion yielded by seq. Iteration
// stops at the first error.
func WriteDiscussionsCSV(w io.Writer, seq iter.Seq2[*yarn.Discussion, error], config *CSVConfig) (int, error) {
	cw := NewCSVWriter(w, config)
	if err := cw.writeHeader(cw.discussionHeader()); err != nil {
		return 0, err
	}
	for d, err := range seq {
		if err != nil {
			return cw.rowsWritten, err
		}
		if err := cw.WriteDiscussion(d); err != nil {
			return cw.rowsWritten, err
		}
	}
	return cw.rowsWritten, cw.Flush()
}

// WriteAnnotationsCSV exports every annotation yielded by seq.
func WriteAnnotationsCSV(w io.Writer, seq iter.Seq2[*yarn.Annotation, error], config *CSVConfig) (int, error) {
	cw := NewCSVWriter(w, config)
	if err := cw.writeHeader(annotationColumns); err != nil {
		return 0, err
	}
	for a, err := range seq {
		if err != nil {
			return cw.rowsWritten, err
		}
		if err := cw.WriteAnnotation(a); err != nil {
			return cw.rowsWritten, err
		}
	}
	return cw.rowsWritten, cw.Flush()
}
