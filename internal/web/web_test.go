package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choircal/internal/board"
	"choircal/internal/config"
	"choircal/internal/metrics"
	"choircal/internal/schedule"
)

const sheetCSV = `月份,日期,時段,時間,進度內容,場地,備註
11月,11/2(日),下午,14:00-17:00,大團 Mozart,501教室,
,11/9(日),下午,14:00-17:00,小團 Bach,501教室,
12月,12/7(日),下午,14:00-17:00,Brahms,501教室,注意：提早集合
,12/25(四),晚上,19:00,聖誕演出,音樂廳,
`

var testNow = time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, csv string, mutate func(*config.Config)) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.csv")
	if csv != "" {
		require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))
	}

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.SeasonStartYear = 2025
	cfg.Source.ID = "scu"
	cfg.Source.File = path
	if mutate != nil {
		mutate(cfg)
	}

	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	require.NoError(t, err)
	b, err := board.FromConfig(cfg, rec, testNow)
	require.NoError(t, err)

	return NewServer(cfg, b.Service,
		WithClock(func() time.Time { return testNow }),
		WithGatherer(reg),
	)
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBoard(t *testing.T, rec *httptest.ResponseRecorder) schedule.Board {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	var b schedule.Board
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	return b
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, sheetCSV, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestBoardAPI(t *testing.T) {
	s := newTestServer(t, sheetCSV, nil)
	h := s.Handler()

	b := decodeBoard(t, do(t, h, http.MethodGet, "/api/board"))
	assert.False(t, b.Unavailable)
	assert.Equal(t, 3, b.Total)
	assert.Equal(t, []string{"11月", "12月"}, b.Periods)
	require.NotNil(t, b.Reminders.Performance)
	assert.Equal(t, 24, b.Reminders.Performance.DaysUntil)
	assert.True(t, b.Reminders.ShowEvent)
	assert.Equal(t, schedule.StateEventUpcoming, b.Reminders.Event.State)
	assert.Equal(t, 6, b.Reminders.Event.DaysUntil)
	assert.Equal(t, schedule.StateTodayIdle, b.Reminders.Event.Info)

	b = decodeBoard(t, do(t, h, http.MethodGet, "/api/board?small=1&period=11%E6%9C%88"))
	assert.Equal(t, 2, b.Total)
	assert.True(t, b.Selection.ShowSmall)
	assert.Equal(t, []string{"11月"}, b.Selection.Periods)

	b = decodeBoard(t, do(t, h, http.MethodGet, "/api/board?q=brahms"))
	require.Equal(t, 1, b.Total)
	assert.Equal(t, "Brahms", b.Rows[0].Content)

	b = decodeBoard(t, do(t, h, http.MethodGet, "/api/board?performance=true"))
	require.Equal(t, 1, b.Total)
	assert.True(t, b.Rows[0].IsPerformance)
}

func TestBoardAPIUnavailable(t *testing.T) {
	s := newTestServer(t, "", nil)

	b := decodeBoard(t, do(t, s.Handler(), http.MethodGet, "/api/board"))
	assert.True(t, b.Unavailable)
	assert.Equal(t, board.UnavailableWarning, b.Warning)
	assert.Empty(t, b.Rows)
}

func TestParseSelection(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/board?small=yes&period=a&period=+&period=b&q=+x+&performance=1&sort=date", nil)
	sel := ParseSelection(req)
	assert.False(t, sel.ShowSmall, "unparsable booleans fall back to the default")
	assert.Equal(t, []string{"a", "b"}, sel.Periods)
	assert.Equal(t, "x", sel.Keyword)
	assert.True(t, sel.PerformanceOnly)
	assert.True(t, sel.SortByDate)
}

func TestScheduleICS(t *testing.T) {
	s := newTestServer(t, sheetCSV, nil)

	rec := do(t, s.Handler(), http.MethodGet, "/api/schedule.ics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Equal(t, 3, strings.Count(body, "BEGIN:VEVENT"), "small-ensemble row hidden by default")

	rec = do(t, s.Handler(), http.MethodGet, "/api/schedule.ics?small=1")
	assert.Equal(t, 4, strings.Count(rec.Body.String(), "BEGIN:VEVENT"))
}

func TestScheduleICSUnavailable(t *testing.T) {
	s := newTestServer(t, "", nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/schedule.ics")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRefresh(t *testing.T) {
	s := newTestServer(t, sheetCSV, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp refreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Records)
	assert.Equal(t, 1, resp.Dropped)
}

func TestBoardPage(t *testing.T) {
	s := newTestServer(t, sheetCSV, nil)

	rec := do(t, s.Handler(), http.MethodGet, "/board?small=1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-ready="true"`)
	assert.Contains(t, body, `data-today="2025-12-01"`)
	assert.Contains(t, body, "小團 Bach")
	assert.Contains(t, body, `class="row-alert"`)
	assert.Contains(t, body, "還有 24 天")

	rec = do(t, s.Handler(), http.MethodGet, "/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/board", rec.Header().Get("Location"))
}

func TestBoardPageUnavailable(t *testing.T) {
	s := newTestServer(t, "", nil)
	rec := do(t, s.Handler(), http.MethodGet, "/board")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="warning"`)
	assert.Contains(t, rec.Body.String(), `data-ready="true"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, sheetCSV, nil)
	h := s.Handler()
	do(t, h, http.MethodGet, "/api/board")

	rec := do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `choircal_records{category="large"} 3`)
	assert.Contains(t, rec.Body.String(), "choircal_source_fetch_total")
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(t, sheetCSV, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "choir", Password: "s3cret"}
	})
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health").Code)

	rec := do(t, h, http.MethodGet, "/api/board")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/board", nil)
	req.SetBasicAuth("choir", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/board", nil)
	req.SetBasicAuth("choir", "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBasicAuthDisabledWithEmptyCredentials(t *testing.T) {
	s := newTestServer(t, sheetCSV, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "choir"}
	})
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/api/board").Code)
}
