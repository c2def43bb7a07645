package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"

	"github.com/mrjaymac/weekly-wrapped/internal/analytics"
	"github.com/mrjaymac/weekly-wrapped/internal/db"
	"github.com/mrjaymac/weekly-wrapped/internal/spotify"
)

type fakePlayReader struct {
	events []db.PlayEvent
	userID string
}

func (r *fakePlayReader) EventsSince(_ context.Context, userID string, _ time.Time) ([]db.PlayEvent, error) {
	r.userID = userID
	return r.events, nil
}

type fakeReportGetter struct {
	report *db.WeeklyReport
	userID string
}

func (g *fakeReportGetter) Get(_ context.Context, userID string, _ time.Time) (*db.WeeklyReport, error) {
	g.userID = userID
	if g.report == nil {
		return nil, db.ErrNotFound
	}
	return g.report, nil
}

func testHandlers(t *testing.T, reader analytics.PlayReader, reports ReportGetter) *Handlers {
	t.Helper()
	auth, err := spotify.NewAuthenticator("client-id", "client-secret", "http://127.0.0.1:8000/callback")
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}

	// Wednesday; the window opened Sunday 2025-03-09.
	clock := func() time.Time { return time.Date(2025, 3, 12, 14, 0, 0, 0, time.UTC) }
	analyticsSvc := analytics.New(reader, nil, log.Default(), analytics.WithClock(clock))

	return NewHandlers(auth, nil, reports, nil, analyticsSvc, log.Default(), "http://localhost:3000")
}

func TestLoginJSON(t *testing.T) {
	h := testHandlers(t, &fakePlayReader{}, &fakeReportGetter{})

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodGet, "/login?json=1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}

	authURL, err := url.Parse(body["url"])
	if err != nil {
		t.Fatalf("url is not parseable: %v", err)
	}
	if authURL.Host != "accounts.spotify.com" {
		t.Errorf("host = %q, want accounts.spotify.com", authURL.Host)
	}
	q := authURL.Query()
	if q.Get("client_id") != "client-id" {
		t.Errorf("client_id = %q, want client-id", q.Get("client_id"))
	}
	if !strings.Contains(q.Get("scope"), "user-read-recently-played") {
		t.Errorf("scope = %q, missing user-read-recently-played", q.Get("scope"))
	}

	// The state parameter must match the cookie set for the callback check.
	var stateCookie string
	for _, c := range rec.Result().Cookies() {
		if c.Name == oauthStateCookie {
			stateCookie = c.Value
		}
	}
	if stateCookie == "" {
		t.Fatal("no oauth_state cookie set")
	}
	if q.Get("state") != stateCookie {
		t.Errorf("state param %q does not match cookie %q", q.Get("state"), stateCookie)
	}
}

func TestLoginRedirect(t *testing.T) {
	h := testHandlers(t, &fakePlayReader{}, &fakeReportGetter{})

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "https://accounts.spotify.com/authorize") {
		t.Errorf("Location = %q, want a Spotify authorize URL", loc)
	}
}

func TestCallbackRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		wantMsg string
	}{
		{"missing code", "/callback", "No authorization code provided"},
		{"provider error", "/callback?error=access_denied", "Spotify auth error: access_denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHandlers(t, &fakePlayReader{}, &fakeReportGetter{})

			rec := httptest.NewRecorder()
			h.Callback(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			var body apiError
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if body.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", body.Error, tt.wantMsg)
			}
		})
	}
}

func TestCallbackStateMismatch(t *testing.T) {
	h := testHandlers(t, &fakePlayReader{}, &fakeReportGetter{})

	req := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "expected"})

	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTopListeningDay(t *testing.T) {
	reader := &fakePlayReader{events: []db.PlayEvent{
		{PlayedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), DurationMs: 180000},  // Monday
		{PlayedAt: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), DurationMs: 180000}, // Monday
		{PlayedAt: time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), DurationMs: 180000},  // Tuesday
	}}
	h := testHandlers(t, reader, &fakeReportGetter{})

	rec := httptest.NewRecorder()
	h.TopListeningDay(rec, httptest.NewRequest(http.MethodGet, "/top-listening-day?user_id=user-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if reader.userID != "user-1" {
		t.Errorf("reader queried for %q, want user-1", reader.userID)
	}

	var body topDayResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body.TopListeningDay == nil {
		t.Fatal("topListeningDay = nil, want Monday")
	}
	if body.TopListeningDay.Day != "Monday" || body.TopListeningDay.Minutes != 6 {
		t.Errorf("topListeningDay = %+v, want {Monday 6}", *body.TopListeningDay)
	}
}

func TestTopListeningDayNoData(t *testing.T) {
	h := testHandlers(t, &fakePlayReader{}, &fakeReportGetter{})

	rec := httptest.NewRecorder()
	h.TopListeningDay(rec, httptest.NewRequest(http.MethodGet, "/top-listening-day?user_id=user-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body topDayResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body.TopListeningDay != nil {
		t.Errorf("topListeningDay = %+v, want nil for an empty window", *body.TopListeningDay)
	}
	if !body.NoData {
		t.Error("noData = false, want true")
	}
}

func TestTopListeningDayMissingUser(t *testing.T) {
	h := testHandlers(t, &fakePlayReader{}, &fakeReportGetter{})

	rec := httptest.NewRecorder()
	h.TopListeningDay(rec, httptest.NewRequest(http.MethodGet, "/top-listening-day", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTotalListeningTime(t *testing.T) {
	reader := &fakePlayReader{events: []db.PlayEvent{
		{PlayedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), DurationMs: 240000},
		{PlayedAt: time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), DurationMs: 180000},
	}}
	h := testHandlers(t, reader, &fakeReportGetter{})

	rec := httptest.NewRecorder()
	h.TotalListeningTime(rec, httptest.NewRequest(http.MethodGet, "/total-listening-time?user_id=user-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	var body totalTimeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body.TotalListeningTimeMinutes != 7 {
		t.Errorf("totalListeningTimeMinutes = %d, want 7", body.TotalListeningTimeMinutes)
	}
}

func TestWeeklyReport(t *testing.T) {
	reports := &fakeReportGetter{report: &db.WeeklyReport{
		WeekEnding: time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC),
		Results:    []byte(`{"topTracks":[{"song":"Song X","artist":"Artist Y","count":3}]}`),
	}}
	h := testHandlers(t, &fakePlayReader{}, reports)

	rec := httptest.NewRecorder()
	h.WeeklyReport(rec, httptest.NewRequest(http.MethodGet, "/weekly-report?user_id=user-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if reports.userID != "user-1" {
		t.Errorf("report read for %q, want user-1", reports.userID)
	}

	var body struct {
		WeekEnding time.Time `json:"weekEnding"`
		Results    struct {
			TopTracks []analytics.TrackCount `json:"topTracks"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if !body.WeekEnding.Equal(time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("weekEnding = %v, want 2025-03-16", body.WeekEnding)
	}
	if len(body.Results.TopTracks) != 1 || body.Results.TopTracks[0].Song != "Song X" {
		t.Errorf("results = %+v, want the stored payload verbatim", body.Results)
	}
}

func TestWeeklyReportNotFound(t *testing.T) {
	h := testHandlers(t, &fakePlayReader{}, &fakeReportGetter{})

	rec := httptest.NewRecorder()
	h.WeeklyReport(rec, httptest.NewRequest(http.MethodGet, "/weekly-report?user_id=user-1", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestWeeklyReportMissingUser(t *testing.T) {
	h := testHandlers(t, &fakePlayReader{}, &fakeReportGetter{})

	rec := httptest.NewRecorder()
	h.WeeklyReport(rec, httptest.NewRequest(http.MethodGet, "/weekly-report", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTotalListeningTimeMissingUser(t *testing.T) {
	h := testHandlers(t, &fakePlayReader{}, &fakeReportGetter{})

	rec := httptest.NewRecorder()
	h.TotalListeningTime(rec, httptest.NewRequest(http.MethodGet, "/total-listening-time", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
