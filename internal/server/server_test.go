package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/radiodex/radiodex/internal/config"
	"github.com/radiodex/radiodex/internal/engage"
	"github.com/radiodex/radiodex/internal/models"
	"github.com/radiodex/radiodex/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	cfg := &config.Config{}
	cfg.ServerPort = "0"
	tracker := engage.NewTracker(s, engage.NewMemoryCache())

	ts := httptest.NewServer(New(s, cfg, tracker, nil))
	t.Cleanup(ts.Close)
	return ts, s
}

func seedStation(t *testing.T, s store.Store, st models.Station) int64 {
	t.Helper()
	if st.ContentType == "" {
		st.ContentType = "audio/mpeg"
	}
	if st.Bitrate == nil {
		br := 128
		st.Bitrate = &br
	}
	id, err := s.AddStation(context.Background(), &st)
	if err != nil {
		t.Fatalf("AddStation(%s): %v", st.URL, err)
	}
	return id
}

func getJSON(t *testing.T, url string, wantStatus int, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

func doJSON(t *testing.T, method, url string, wantStatus int, v any) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s status = %d, want %d", method, url, resp.StatusCode, wantStatus)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	var body map[string]string
	getJSON(t, ts.URL+"/api/health", http.StatusOK, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestSearchStations(t *testing.T) {
	ts, s := newTestServer(t)

	rock := models.Station{URL: "https://rock.example/s", Name: "Rock Radio", Genre: "Pop", Online: true, InList: 2, PlayMinutes: 10}
	seedStation(t, s, rock)
	jazz := models.Station{URL: "https://jazz.example/s", Name: "Jazz FM", Genre: "Classic Rock", Online: true, PlayMinutes: 5}
	seedStation(t, s, jazz)

	var body struct {
		Stations []models.Station `json:"stations"`
		Total    int              `json:"total"`
	}
	getJSON(t, ts.URL+"/api/stations?genres=rock", http.StatusOK, &body)
	if body.Total != 2 || len(body.Stations) != 2 {
		t.Fatalf("total = %d (%d stations), want 2", body.Total, len(body.Stations))
	}
	if body.Stations[0].Name != "Rock Radio" || body.Stations[1].Name != "Jazz FM" {
		t.Errorf("ranking order wrong: %s, %s", body.Stations[0].Name, body.Stations[1].Name)
	}

	// The served search lands in the genre query log.
	var top struct {
		Genres []string `json:"genres"`
	}
	getJSON(t, ts.URL+"/api/genres/top", http.StatusOK, &top)
	if len(top.Genres) != 1 || top.Genres[0] != "rock" {
		t.Errorf("top genres = %v, want [rock]", top.Genres)
	}

	// No genres parameter: full online catalog, and nothing logged.
	getJSON(t, ts.URL+"/api/stations", http.StatusOK, &body)
	if body.Total != 2 {
		t.Errorf("unfiltered total = %d, want 2", body.Total)
	}
	getJSON(t, ts.URL+"/api/genres/top", http.StatusOK, &top)
	if len(top.Genres) != 1 {
		t.Errorf("empty search was logged: %v", top.Genres)
	}
}

func TestGetStation(t *testing.T) {
	ts, s := newTestServer(t)
	id := seedStation(t, s, models.Station{URL: "https://a.example/s", Name: "A", Genre: "rock", Online: true})

	var st models.Station
	getJSON(t, ts.URL+"/api/stations/"+itoa(id), http.StatusOK, &st)
	if st.ID != id || st.Name != "A" {
		t.Errorf("station = %+v", st)
	}

	getJSON(t, ts.URL+"/api/stations/9999", http.StatusNotFound, nil)
	getJSON(t, ts.URL+"/api/stations/abc", http.StatusBadRequest, nil)
}

func TestReportPlay(t *testing.T) {
	ts, s := newTestServer(t)
	id := seedStation(t, s, models.Station{URL: "https://a.example/s", Name: "A", Genre: "rock", Online: true})

	var body struct {
		Outcome string `json:"outcome"`
	}
	doJSON(t, http.MethodPost, ts.URL+"/api/stations/"+itoa(id)+"/play", http.StatusOK, &body)
	if body.Outcome != "counted" {
		t.Errorf("first outcome = %q, want counted", body.Outcome)
	}

	// Same client inside the cooldown window: success-shaped throttle.
	doJSON(t, http.MethodPost, ts.URL+"/api/stations/"+itoa(id)+"/play", http.StatusOK, &body)
	if body.Outcome != "throttled" {
		t.Errorf("repeat outcome = %q, want throttled", body.Outcome)
	}

	st, err := s.GetStationByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetStationByID: %v", err)
	}
	if st.PlayMinutes != 1 {
		t.Errorf("play_minutes = %d, want 1", st.PlayMinutes)
	}

	doJSON(t, http.MethodPost, ts.URL+"/api/stations/9999/play", http.StatusNotFound, nil)
}

func TestListMembership(t *testing.T) {
	ts, s := newTestServer(t)
	id := seedStation(t, s, models.Station{URL: "https://a.example/s", Name: "A", Genre: "rock", Online: true})

	doJSON(t, http.MethodPut, ts.URL+"/api/users/u1/stations/"+itoa(id), http.StatusOK, nil)
	st, err := s.GetStationByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetStationByID: %v", err)
	}
	if st.InList != 1 {
		t.Errorf("in_list = %d, want 1 after PUT", st.InList)
	}

	doJSON(t, http.MethodDelete, ts.URL+"/api/users/u1/stations/"+itoa(id), http.StatusNoContent, nil)
	st, _ = s.GetStationByID(context.Background(), id)
	if st.InList != 0 {
		t.Errorf("in_list = %d, want 0 after DELETE", st.InList)
	}
}

func TestStats(t *testing.T) {
	ts, s := newTestServer(t)
	seedStation(t, s, models.Station{URL: "https://a.example/s", Name: "A", Genre: "rock", Online: true})
	off := models.Station{URL: "https://b.example/s", Name: "B", Genre: "rock"}
	seedStation(t, s, off)

	var body struct {
		Online int `json:"online"`
		Total  int `json:"total"`
	}
	getJSON(t, ts.URL+"/api/stats", http.StatusOK, &body)
	if body.Online != 1 || body.Total != 2 {
		t.Errorf("stats = %+v, want 1/2", body)
	}
}

func TestIngestUnconfigured(t *testing.T) {
	ts, _ := newTestServer(t)
	doJSON(t, http.MethodPost, ts.URL+"/api/ingest", http.StatusServiceUnavailable, nil)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
