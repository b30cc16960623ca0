// Package export writes the rows a saved filter matches to an XLSX workbook.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/advfilters/internal/auth"
	"github.com/rpattn/advfilters/internal/filters"
	"github.com/rpattn/advfilters/internal/log"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	defaultSheet   = "Results"
	defaultMaxRows = 10000
)

type Service struct {
	filters *filters.Service

	sheetName string
	maxRows   int
	now       func() time.Time
}

type Option func(*Service)

// WithMaxRows caps the number of data rows written to a workbook.
func WithMaxRows(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRows = n
		}
	}
}

func WithSheetName(name string) Option {
	return func(s *Service) {
		if strings.TrimSpace(name) != "" {
			s.sheetName = strings.TrimSpace(name)
		}
	}
}

func NewService(filterService *filters.Service, opts ...Option) *Service {
	service := &Service{
		filters:   filterService,
		sheetName: defaultSheet,
		maxRows:   defaultMaxRows,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Summary describes a written workbook.
type Summary struct {
	Filename  string
	Rows      int
	Truncated bool
}

// Filename is the download name for a filter export.
func (s *Service) Filename(ctx context.Context, actor auth.Actor, id uuid.UUID) (string, error) {
	spec, err := s.filters.Get(ctx, actor, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s.xlsx", sanitizeFileComponent(spec.Title), s.now().UTC().Format("20060102")), nil
}

// Export applies the saved filter page by page and streams the rows into a
// single-sheet workbook written to w. A header row of column names comes
// first. Rows beyond the configured cap are dropped and reported as
// truncated.
func (s *Service) Export(ctx context.Context, actor auth.Actor, id uuid.UUID, w io.Writer) (Summary, error) {
	filename, err := s.Filename(ctx, actor, id)
	if err != nil {
		return Summary{}, err
	}

	// Fetch the first page before building the workbook so permission and
	// compile failures surface before anything is written.
	first, err := s.filters.Apply(ctx, actor, id, 1)
	if err != nil {
		return Summary{}, err
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Warnf("failed to close workbook: %v", cerr)
		}
	}()
	if err := f.SetSheetName("Sheet1", s.sheetName); err != nil {
		return Summary{}, fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(s.sheetName)
	if err != nil {
		return Summary{}, fmt.Errorf("open stream writer: %w", err)
	}

	header := make([]any, 0, len(first.Columns))
	for _, col := range first.Columns {
		header = append(header, col)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return Summary{}, fmt.Errorf("write header: %w", err)
	}

	summary := Summary{Filename: filename}
	page, rs := 1, first
	for {
		for _, row := range rs.Rows {
			if summary.Rows >= s.maxRows {
				summary.Truncated = true
				break
			}
			cell, err := excelize.CoordinatesToCellName(1, summary.Rows+2)
			if err != nil {
				return summary, err
			}
			if err := sw.SetRow(cell, cellValues(row)); err != nil {
				return summary, fmt.Errorf("write row %d: %w", summary.Rows+1, err)
			}
			summary.Rows++
		}
		if summary.Truncated || !rs.HasMore {
			if rs.HasMore {
				summary.Truncated = true
			}
			break
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		page++
		rs, err = s.filters.Apply(ctx, actor, id, page)
		if err != nil {
			return summary, err
		}
	}

	if err := sw.Flush(); err != nil {
		return summary, fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return summary, fmt.Errorf("write workbook: %w", err)
	}
	log.Infof("exported filter %s: %d rows (truncated=%v)", id, summary.Rows, summary.Truncated)
	return summary, nil
}

func cellValues(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		switch v.(type) {
		case nil:
			out[i] = nil
		case int, int32, int64, float32, float64, bool:
			out[i] = v
		default:
			out[i] = formatValue(v)
		}
	}
	return out
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return v.String()
	case []byte:
		return string(v)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "filter"
	}
	return result
}
