package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"postdeck/internal/calendar"
	"postdeck/internal/lifecycle"
	"postdeck/internal/publisher"
	"postdeck/internal/timer"
	"postdeck/internal/worker"
	logx "postdeck/pkg/logx"
)

var t0 = time.Date(2024, time.March, 10, 10, 30, 0, 0, time.UTC)

type fixture struct {
	clock *timer.FakeClock
	ctl   *lifecycle.Controller
	srv   *httptest.Server
}

func newFixture(t *testing.T, pub publisher.Publisher, token string) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.New(worker.Config{Workers: 2, QueueSize: 16}, logx.Nop())
	pool.Start(ctx)
	clk := timer.NewFakeClock(t0)
	timers := timer.New(timer.Config{Timezone: "UTC", Sweep: "off"}, clk, pool, logx.Nop())

	var n atomic.Int64
	ctl, err := lifecycle.New(lifecycle.Options{
		Publisher: pub,
		Generator: publisher.Template{},
		Timers:    timers,
		Runner:    pool,
		Now:       clk.Now,
		Location:  time.UTC,
		NewID:     func() string { return fmt.Sprintf("id-%d", n.Add(1)) },
	})
	if err != nil {
		t.Fatalf("lifecycle.New: %v", err)
	}
	srv := httptest.NewServer(New(Config{Token: token}, ctl, logx.Nop()).Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = ctl.Close(context.Background())
		_ = pool.Stop(context.Background())
		cancel()
	})
	return &fixture{clock: clk, ctl: ctl, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var rd *bytes.Reader
	if s, ok := body.(string); ok {
		rd = bytes.NewReader([]byte(s))
	} else if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.ctl.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func (f *fixture) createPost(t *testing.T, platform, content string) lifecycle.OpenPost {
	t.Helper()
	var p lifecycle.OpenPost
	if code := f.do(t, http.MethodPost, "/api/posts", map[string]string{"platform": platform}, &p); code != http.StatusCreated {
		t.Fatalf("create post status = %d, want 201", code)
	}
	if code := f.do(t, http.MethodPut, "/api/posts/"+p.ID+"/content", map[string]string{"content": content}, &p); code != http.StatusOK {
		t.Fatalf("put content status = %d, want 200", code)
	}
	return p
}

func TestScheduleAndExport(t *testing.T) {
	t.Parallel()

	f := newFixture(t, publisher.Succeed(), "")
	p := f.createPost(t, "LinkedIn", "Quarterly update")

	var loc calendar.Located
	code := f.do(t, http.MethodPost, "/api/posts/"+p.ID+"/schedule", map[string]string{"date": "2024-2-11", "time": "14:00"}, &loc)
	if code != http.StatusCreated {
		t.Fatalf("schedule status = %d, want 201", code)
	}
	if loc.Key != "2024-2-11" || loc.Event.Time != "14:00" || loc.Event.NoteType != calendar.NoteYellow {
		t.Fatalf("scheduled = %+v", loc)
	}

	var snap lifecycle.Snapshot
	if code := f.do(t, http.MethodGet, "/api/snapshot", nil, &snap); code != http.StatusOK {
		t.Fatalf("snapshot status = %d", code)
	}
	if got := len(snap.Events["2024-2-11"]); got != 1 {
		t.Fatalf("bucket size = %d, want 1", got)
	}
	if len(snap.Open) != 0 {
		t.Fatalf("open posts = %d, want 0 after schedule", len(snap.Open))
	}

	resp, err := f.srv.Client().Get(f.srv.URL + "/api/calendar.ics")
	if err != nil {
		t.Fatalf("GET ics: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(buf.String(), "BEGIN:VEVENT") || !strings.Contains(buf.String(), loc.Event.ID+"@postdeck") {
		t.Fatalf("ics missing event:\n%s", buf.String())
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	f := newFixture(t, publisher.Succeed(), "")
	p := f.createPost(t, "Twitter", "hello")

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"past time", http.MethodPost, "/api/posts/" + p.ID + "/schedule", map[string]string{"date": "2024-2-10", "time": "09:00"}, 400, "validation"},
		{"bad date", http.MethodPost, "/api/posts/" + p.ID + "/schedule", map[string]string{"date": "tomorrow"}, 400, "validation"},
		{"unknown field", http.MethodPost, "/api/posts", `{"platfrom": "Twitter"}`, 400, "validation"},
		{"unknown post", http.MethodPost, "/api/posts/nope/publish", nil, 404, "not_found"},
		{"unknown draft", http.MethodPost, "/api/drafts/nope/edit", nil, 404, "not_found"},
		{"unknown failed", http.MethodDelete, "/api/failed/nope", nil, 404, "not_found"},
		{"empty time", http.MethodPatch, "/api/events/2024-2-11/x", map[string]string{"time": ""}, 400, "validation"},
	}
	for _, tc := range cases {
		var body errorBody
		code := f.do(t, tc.method, tc.path, tc.body, &body)
		if code != tc.status || body.Kind != tc.kind {
			t.Fatalf("%s: status=%d kind=%q, want %d %q (%s)", tc.name, code, body.Kind, tc.status, tc.kind, body.Error)
		}
	}
}

func TestRetryContentIssueAnswers422(t *testing.T) {
	t.Parallel()

	f := newFixture(t, publisher.Fail("Tweet exceeds character limit"), "")
	p := f.createPost(t, "Twitter", strings.Repeat("x", 290))
	if code := f.do(t, http.MethodPost, "/api/posts/"+p.ID+"/schedule", map[string]string{"date": "2024-2-10", "time": "11:00"}, nil); code != http.StatusCreated {
		t.Fatalf("schedule status = %d", code)
	}
	f.clock.Advance(time.Hour)
	f.settle(t)

	snap := f.ctl.Snapshot()
	if len(snap.Failed) != 1 {
		t.Fatalf("failed = %d, want 1", len(snap.Failed))
	}
	var body struct {
		Kind   string                `json:"kind"`
		Result lifecycle.RetryResult `json:"result"`
	}
	code := f.do(t, http.MethodPost, "/api/failed/"+snap.Failed[0].ID+"/retry", nil, &body)
	if code != http.StatusUnprocessableEntity || body.Kind != "content_issue" {
		t.Fatalf("retry = %d %q, want 422 content_issue", code, body.Kind)
	}
	if body.Result.Post == nil || body.Result.Post.Content != strings.Repeat("x", 290) {
		t.Fatalf("retry result post = %+v", body.Result.Post)
	}
	if body.Result.Classification.CurrentLength != 290 || body.Result.Classification.Limit != 280 {
		t.Fatalf("classification = %+v", body.Result.Classification)
	}
}

func TestDropAndDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t, publisher.Succeed(), "")
	y := 600.0
	var placed calendar.Located
	code := f.do(t, http.MethodPost, "/api/drops", calendar.Drop{Kind: calendar.DropPlace, Platform: "Instagram", Target: "2024-2-12", Y: &y, Height: 960}, &placed)
	if code != http.StatusCreated || placed.Event.Time != "15:00" {
		t.Fatalf("place = %d %+v, want 201 at 15:00", code, placed)
	}

	var moved calendar.Located
	code = f.do(t, http.MethodPost, "/api/drops", calendar.Drop{Kind: calendar.DropMove, EventID: placed.Event.ID, Source: placed.Key, Target: "2024-2-13", Time: "08:15"}, &moved)
	if code != http.StatusOK || moved.Event.ID != placed.Event.ID || moved.Key != "2024-2-13" {
		t.Fatalf("move = %d %+v", code, moved)
	}

	for range 2 {
		if code := f.do(t, http.MethodDelete, "/api/events/2024-2-13/"+placed.Event.ID, nil, nil); code != http.StatusNoContent {
			t.Fatalf("delete status = %d, want 204", code)
		}
	}
	if n := len(f.ctl.Snapshot().Events["2024-2-13"]); n != 0 {
		t.Fatalf("bucket size = %d after delete", n)
	}
}

func TestTokenAuth(t *testing.T) {
	t.Parallel()

	f := newFixture(t, publisher.Succeed(), "s3cret")
	resp, err := f.srv.Client().Get(f.srv.URL + "/api/limits")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/api/limits", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var limits []struct {
		Platform string `json:"platform"`
		Limit    int    `json:"limit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&limits); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, l := range limits {
		if l.Platform == "Twitter" && l.Limit == 280 {
			found = true
		}
	}
	if !found {
		t.Fatalf("limits = %+v, want Twitter 280", limits)
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{calendar.Invalid("time", "past"), "validation"},
		{fmt.Errorf("wrap: %w", lifecycle.ErrNotFound), "not_found"},
		{calendar.ErrNotFound, "not_found"},
		{&lifecycle.ContentIssueError{}, "content_issue"},
		{&lifecycle.TransientError{Err: errors.New("queue full")}, "transient"},
		{errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
		if got := statusFor(ErrorKind(tc.err)); got == 0 {
			t.Fatalf("statusFor(%v) = 0", tc.err)
		}
	}
}

func TestPprofRoutes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		pprof bool
		token string
		auth  string
		want  int
	}{
		{pprof: false, want: http.StatusNotFound},
		{pprof: true, want: http.StatusOK},
		{pprof: true, token: "s3cret", want: http.StatusUnauthorized},
		{pprof: true, token: "s3cret", auth: "Bearer s3cret", want: http.StatusOK},
	}
	for _, tc := range cases {
		h := New(Config{Token: tc.token, Pprof: tc.pprof}, nil, logx.Nop()).Handler()
		req := httptest.NewRequest(http.MethodGet, "/debug/pprof/cmdline", nil)
		if tc.auth != "" {
			req.Header.Set("Authorization", tc.auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("pprof=%v token=%q status = %d, want %d", tc.pprof, tc.token, rec.Code, tc.want)
		}
	}
}
