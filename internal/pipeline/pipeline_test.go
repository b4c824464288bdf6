package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engagecal/internal/engage"
	"engagecal/internal/ics"
	"engagecal/internal/metrics"
	"engagecal/internal/publish"
)

var fixedNow = func() time.Time { return time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC) }

func engageServer(t *testing.T, n int, failAt int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		take, _ := strconv.Atoi(r.URL.Query().Get("take"))
		if failAt >= 0 && skip >= failAt {
			http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
			return
		}
		items := []map[string]any{}
		for i := skip; i < skip+take && i < n; i++ {
			item := map[string]any{
				"id":          strconv.Itoa(i),
				"name":        fmt.Sprintf("Event %d, part %d", i, i%3),
				"description": "<p>Details &amp; more</p>",
				"startsOn":    "2024-09-10T13:00:00",
				"endsOn":      "2024-09-10T14:00:00+00:00",
				"state":       map[string]any{"status": "Approved"},
			}
			if i%10 == 0 {
				item["state"] = map[string]any{"status": "Canceled"}
			}
			items = append(items, item)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"skip": skip, "take": take, "totalItems": n, "items": items})
	}))
}

func newRunner(t *testing.T, srv *httptest.Server, out string) *Runner {
	t.Helper()
	f, err := engage.NewFetcher(engage.Options{BaseURL: srv.URL + "/events", PageSize: 50, Client: srv.Client()})
	require.NoError(t, err)
	return &Runner{
		Fetcher: f,
		Mapper:  ics.NewMapper(ics.FieldMap{}, "example.edu", true),
		Sink:    publish.NewLocal(out),
		Metrics: metrics.NewRecorder(),
		Now:     fixedNow,
	}
}

func TestRunWritesCalendar(t *testing.T) {
	srv := engageServer(t, 120, -1)
	defer srv.Close()
	out := filepath.Join(t.TempDir(), "docs", "calendar.ics")
	r := newRunner(t, srv, out)

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, sum.Events)
	assert.Equal(t, 3, sum.Pages)
	assert.Equal(t, out, sum.Destination)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	doc := string(data)

	assert.Equal(t, sum.Bytes, len(data))
	assert.True(t, strings.HasPrefix(doc, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(doc, "END:VCALENDAR\r\n"))
	assert.Equal(t, 120, strings.Count(doc, "BEGIN:VEVENT\r\n"))
	assert.Equal(t, 12, strings.Count(doc, "STATUS:CANCELLED\r\n"))
	assert.Equal(t, 120, strings.Count(doc, "DTSTAMP:20240901T120000Z\r\n"))
	assert.Contains(t, doc, "UID:119@example.edu\r\n")
	assert.Contains(t, doc, `SUMMARY:Event 7\, part 1`+"\r\n")
	assert.Contains(t, doc, "DESCRIPTION:Details & more\r\n")
	assert.Contains(t, doc, "DTEND:20240910T140000Z\r\n")
	assert.Equal(t, strings.Count(doc, "\n"), strings.Count(doc, "\r\n"))

	require.NoError(t, testutil.GatherAndCompare(r.Metrics.Registry(), strings.NewReader(`
# HELP engagecal_events Events written in the last successful run
# TYPE engagecal_events gauge
engagecal_events 120
`), "engagecal_events"))
}

func TestRunFetchFailureKeepsPreviousFile(t *testing.T) {
	srv := engageServer(t, 120, 50)
	defer srv.Close()
	out := filepath.Join(t.TempDir(), "calendar.ics")
	require.NoError(t, os.WriteFile(out, []byte("previous"), 0o644))

	_, err := newRunner(t, srv, out).Run(context.Background())
	require.Error(t, err)

	var serr *engage.StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusTooManyRequests, serr.StatusCode)
	assert.Contains(t, serr.Snippet, "rate limited")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

type stubFetcher struct {
	res engage.Result
	err error
}

func (s stubFetcher) FetchAll(context.Context) (engage.Result, error) { return s.res, s.err }

type memSink struct {
	data []byte
	err  error
}

func (m *memSink) Publish(_ context.Context, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.data = append([]byte(nil), data...)
	return nil
}
func (m *memSink) String() string { return "mem://calendar.ics" }
func (m *memSink) Close() error   { return nil }

func TestRunEmptyFeed(t *testing.T) {
	sink := &memSink{}
	r := &Runner{
		Fetcher: stubFetcher{res: engage.Result{Pages: 1}},
		Mapper:  ics.NewMapper(ics.FieldMap{}, "example.edu", true),
		Sink:    sink,
		Now:     fixedNow,
	}

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Events)
	assert.Equal(t, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:"+ics.DefaultProdID+"\r\nCALSCALE:GREGORIAN\r\nMETHOD:PUBLISH\r\nEND:VCALENDAR\r\n", string(sink.data))
}

func TestRunPublishError(t *testing.T) {
	rec := metrics.NewRecorder()
	r := &Runner{
		Fetcher: stubFetcher{res: engage.Result{Pages: 1}},
		Mapper:  ics.NewMapper(ics.FieldMap{}, "example.edu", true),
		Sink:    &memSink{err: errors.New("disk full")},
		Metrics: rec,
		Now:     fixedNow,
	}

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "mem://calendar.ics")

	require.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(`
# HELP engagecal_runs_total Runs by result
# TYPE engagecal_runs_total counter
engagecal_runs_total{result="failure"} 1
`), "engagecal_runs_total"))
}

func TestRenderNoRecords(t *testing.T) {
	r := &Runner{Mapper: ics.NewMapper(ics.FieldMap{}, "example.edu", true)}
	doc := string(r.Render(nil, fixedNow()))
	assert.Zero(t, strings.Count(doc, "BEGIN:VEVENT"))
}
