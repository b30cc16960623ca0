package export

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/advfilters/internal/auth"
	"github.com/rpattn/advfilters/internal/compiler"
	"github.com/rpattn/advfilters/internal/datasource"
	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/filters"
	"github.com/rpattn/advfilters/internal/operators"
	"github.com/rpattn/advfilters/internal/repository"
	"github.com/rpattn/advfilters/internal/schema/schematest"
)

var (
	alice = auth.Actor{ID: "alice"}
	bob   = auth.Actor{ID: "bob"}
)

func newFilterService(t *testing.T) *filters.Service {
	t.Helper()
	resolver := schematest.Resolver(t)
	src := datasource.NewMemorySource(resolver)
	require.NoError(t, src.LoadFixtures(bytes.NewReader(schematest.RowsYAML)))
	c := compiler.New(resolver, operators.MustCatalog(nil, nil))
	return filters.NewService(repository.NewMemoryFilterSpecRepository(), c, resolver, src,
		filters.Options{EditByUser: true, ResultsPageSize: 2})
}

func createActive(t *testing.T, svc *filters.Service) domain.FilterSpec {
	t.Helper()
	spec, err := svc.Create(context.Background(), alice, filters.CreateInput{
		Title:      "Active Clients",
		EntityType: "customers.Client",
		Criteria: domain.CriteriaSet{Criteria: []domain.Criterion{
			{Field: "is_active", Operator: domain.OpIsTrue},
		}},
	})
	require.NoError(t, err)
	return spec
}

func fixedClock(s *Service) {
	s.now = func() time.Time { return time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC) }
}

func readRows(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestExport_WritesHeaderAndEveryPage(t *testing.T) {
	filterSvc := newFilterService(t)
	spec := createActive(t, filterSvc)
	svc := NewService(filterSvc)
	fixedClock(svc)

	var buf bytes.Buffer
	summary, err := svc.Export(context.Background(), alice, spec.ID, &buf)
	require.NoError(t, err)
	require.Equal(t, "active-clients-20240506.xlsx", summary.Filename)
	require.Equal(t, 3, summary.Rows)
	require.False(t, summary.Truncated)

	rows := readRows(t, buf.Bytes(), defaultSheet)
	require.Len(t, rows, 4)
	require.Equal(t, "id", rows[0][0])
	require.Equal(t, "first_name", rows[0][1])
	require.Equal(t, "assigned_to", rows[0][len(rows[0])-1])

	var names []string
	for _, row := range rows[1:] {
		names = append(names, row[1])
	}
	require.Equal(t, []string{"Franscisco", "Cindy", "Mark"}, names)
}

func TestExport_TruncatesAtMaxRows(t *testing.T) {
	filterSvc := newFilterService(t)
	spec := createActive(t, filterSvc)
	svc := NewService(filterSvc, WithMaxRows(2), WithSheetName("Clients"))

	var buf bytes.Buffer
	summary, err := svc.Export(context.Background(), alice, spec.ID, &buf)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Rows)
	require.True(t, summary.Truncated)
	require.Len(t, readRows(t, buf.Bytes(), "Clients"), 3)
}

func TestExport_PrivateFilterDenied(t *testing.T) {
	filterSvc := newFilterService(t)
	spec := createActive(t, filterSvc)
	svc := NewService(filterSvc)

	var buf bytes.Buffer
	_, err := svc.Export(context.Background(), bob, spec.ID, &buf)
	require.True(t, errors.Is(err, domain.ErrPermissionDenied), "got %v", err)
	require.Zero(t, buf.Len())
}

func TestHTTPHandler(t *testing.T) {
	filterSvc := newFilterService(t)
	spec := createActive(t, filterSvc)

	var gotErr error
	router := mux.NewRouter()
	router.Handle("/filters/{id}/export.xlsx", NewHTTPHandler(NewService(filterSvc), func(w http.ResponseWriter, err error) {
		gotErr = err
		http.Error(w, err.Error(), http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/filters/"+spec.ID.String()+"/export.xlsx", nil)
	req = req.WithContext(auth.ContextWithActor(req.Context(), alice))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ContentType, rec.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), `attachment; filename="active-clients-`))
	require.Equal(t, "3", rec.Header().Get("X-Export-Rows"))
	require.Len(t, readRows(t, rec.Body.Bytes(), defaultSheet), 4)

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/filters/"+spec.ID.String()+"/export.xlsx", nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
		require.ErrorIs(t, gotErr, auth.ErrUnauthenticated)
	})

	t.Run("bad id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/filters/nope/export.xlsx", nil)
		req = req.WithContext(auth.ContextWithActor(req.Context(), alice))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusTeapot, rec.Code)
		require.ErrorIs(t, gotErr, domain.ErrValidation)
	})
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	require.Equal(t, "2024-03-01T11:00:00Z", formatValue(ts))
	require.Equal(t, "", formatValue(nil))
	require.Equal(t, `["a",1]`, formatValue([]any{"a", 1}))
	require.Equal(t, "true", formatValue(true))
	require.Equal(t, "filter", sanitizeFileComponent("  ***  "))
	require.Equal(t, "q1-report_v2", sanitizeFileComponent("Q1 Report_v2"))
}
