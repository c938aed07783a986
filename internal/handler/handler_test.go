package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"bustrack/internal/tracker"
)

var testRoute = tracker.RouteInfo{RouteID: "A", ShortName: "212", LongName: "Kent Station"}

// fakePoller returns a fixed record or error. When block is set each call
// waits for it to close.
type fakePoller struct {
	rec   tracker.HistoryRecord
	err   error
	block chan struct{}
	calls atomic.Int32
}

func (f *fakePoller) Poll(ctx context.Context) (tracker.HistoryRecord, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.rec, f.err
}

func (f *fakePoller) Monitored() []string { return []string{"212", "215"} }

type fixture struct {
	h       *Handler
	history *tracker.History
	dir     *tracker.Directory
	ready   *tracker.Gate
	poller  *fakePoller
}

func newFixture(t *testing.T, poller *fakePoller, ttl time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		history: tracker.NewHistory(5),
		dir:     tracker.NewDirectory(),
		ready:   tracker.NewGate(),
		poller:  poller,
	}
	f.h = New(f.history, f.dir, f.ready, poller, Options{CurrentCacheTTL: ttl, PollInterval: time.Hour}, zerolog.Nop())
	return f
}

func (f *fixture) load() {
	f.dir.Replace(tracker.NewSnapshot([]tracker.RouteInfo{testRoute}, time.Unix(1700000000, 0)))
	f.ready.Fire()
}

func positionRecord(ts int64) tracker.HistoryRecord {
	return tracker.HistoryRecord{
		Timestamp: strconv.FormatInt(ts, 10),
		Locations: []tracker.VehiclePosition{
			{Lat: 40.0, Lon: -74.0, Timestamp: "1699999990", VehicleID: "V1", Route: testRoute},
		},
	}
}

func serve(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", target, nil))
	return rec
}

func TestHistory_Empty(t *testing.T) {
	f := newFixture(t, &fakePoller{}, 0)

	rec := serve(f.h.History, "/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHistory_Records(t *testing.T) {
	f := newFixture(t, &fakePoller{}, 0)
	for i := int64(0); i < 7; i++ {
		f.history.Append(positionRecord(1700000000 + i))
	}

	rec := serve(f.h.History, "/history")

	var got []tracker.HistoryRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d records, want capacity 5", len(got))
	}
	if got[0].Timestamp != "1700000002" || got[4].Timestamp != "1700000006" {
		t.Errorf("records span %s..%s, want oldest-first 1700000002..1700000006", got[0].Timestamp, got[4].Timestamp)
	}
}

func TestHistory_WireFormat(t *testing.T) {
	f := newFixture(t, &fakePoller{}, 0)
	f.history.Append(positionRecord(1700000000))

	rec := serve(f.h.History, "/history")

	want := `[{"ts":"1700000000","locations":[{"lat":40,"lon":-74,"ts":"1699999990","vehicle_id":"V1",` +
		`"route":{"route_id":"A","route_short_name":"212","route_long_name":"Kent Station"}}]}]`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("body =\n%s\nwant\n%s", got, want)
	}
}

func TestCurrent_Success(t *testing.T) {
	f := newFixture(t, &fakePoller{rec: positionRecord(1700000000)}, 0)

	rec := serve(f.h.Current, "/current")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []tracker.VehiclePosition
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].VehicleID != "V1" || got[0].Route != testRoute {
		t.Errorf("positions = %+v", got)
	}
	if f.history.Len() != 0 {
		t.Error("/current must not append to history")
	}
}

func TestCurrent_EmptyIsArray(t *testing.T) {
	f := newFixture(t, &fakePoller{rec: tracker.HistoryRecord{Timestamp: "1", Locations: []tracker.VehiclePosition{}}}, 0)

	rec := serve(f.h.Current, "/current")
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestCurrent_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rate limited", &tracker.RateLimitedError{Message: "Rate limit exceeded"}, "rate limited: Rate limit exceeded"},
		{"parse", &tracker.ParseError{Source: "vehicle feed", Err: errString("bad json")}, "bad json"},
		{"transport", &tracker.TransportError{Source: "vehicle feed", Err: errString("connection refused")}, "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &fakePoller{err: tt.err}, time.Minute)

			rec := serve(f.h.Current, "/current")
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rec.Code)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !strings.Contains(body.Error, tt.want) {
				t.Errorf("error = %q, want it to contain %q", body.Error, tt.want)
			}

			// Failures are not cached.
			serve(f.h.Current, "/current")
			if n := f.poller.calls.Load(); n != 2 {
				t.Errorf("poll calls = %d, want 2", n)
			}
		})
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestCurrent_Cached(t *testing.T) {
	tests := []struct {
		name      string
		ttl       time.Duration
		wantCalls int32
	}{
		{"cache enabled", time.Minute, 1},
		{"cache disabled", 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &fakePoller{rec: positionRecord(1700000000)}, tt.ttl)
			for i := 0; i < 3; i++ {
				if rec := serve(f.h.Current, "/current"); rec.Code != http.StatusOK {
					t.Fatalf("status = %d", rec.Code)
				}
			}
			if n := f.poller.calls.Load(); n != tt.wantCalls {
				t.Errorf("poll calls = %d, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestCurrent_ConcurrentRequestsShareOnePoll(t *testing.T) {
	poller := &fakePoller{rec: positionRecord(1700000000), block: make(chan struct{})}
	f := newFixture(t, poller, time.Minute)

	var wg sync.WaitGroup
	codes := make([]int, 10)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = serve(f.h.Current, "/current").Code
		}(i)
	}

	deadline := time.After(time.Second)
	for poller.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("no poll started")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(poller.block)
	wg.Wait()

	if n := poller.calls.Load(); n != 1 {
		t.Errorf("poll calls = %d, want 1", n)
	}
	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("request %d status = %d", i, code)
		}
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, &fakePoller{}, 0)

	var got HealthResponse
	json.Unmarshal(serve(f.h.Health, "/health").Body.Bytes(), &got)
	if got != (HealthResponse{Status: "loading"}) {
		t.Errorf("before load = %+v", got)
	}

	f.load()
	f.history.Append(positionRecord(1700000000))
	json.Unmarshal(serve(f.h.Health, "/health").Body.Bytes(), &got)
	want := HealthResponse{Status: "ok", Routes: 1, History: 1, LastPoll: "1700000000"}
	if got != want {
		t.Errorf("after load = %+v, want %+v", got, want)
	}
}

func TestIndex(t *testing.T) {
	f := newFixture(t, &fakePoller{}, 0)
	f.load()
	f.history.Append(positionRecord(1700000000))

	rec := serve(f.h.Index, "/")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"Kent Station", "215", "not in directory", "https://www.google.com/maps?q=40,-74"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestSSELatest(t *testing.T) {
	f := newFixture(t, &fakePoller{}, 0)
	f.history.Append(positionRecord(1700000000))

	// A cancelled request still gets the initial event before the loop exits.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	f.h.SSELatest(rec, httptest.NewRequest("GET", "/sse/latest", nil).WithContext(ctx))

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: record\n") || !strings.Contains(body, "id: 1700000000\n") {
		t.Errorf("body = %q, want a record event", body)
	}
	if !strings.Contains(body, `data: {"ts":"1700000000"`) {
		t.Errorf("body = %q, want the record as data", body)
	}
}

func TestSSELatest_NothingYet(t *testing.T) {
	f := newFixture(t, &fakePoller{}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	f.h.SSELatest(rec, httptest.NewRequest("GET", "/sse/latest", nil).WithContext(ctx))

	if strings.Contains(rec.Body.String(), "event:") {
		t.Errorf("body = %q, want no events before the first poll", rec.Body.String())
	}
}
