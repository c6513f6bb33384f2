package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/radiodex/radiodex/internal/models"
	"github.com/radiodex/radiodex/internal/prober"
	"github.com/radiodex/radiodex/internal/store"
)

// fakeProber serves canned results keyed by normalized stream URL. URLs with
// no entry probe as unreachable.
type fakeProber struct {
	mu      sync.Mutex
	results map[string]prober.Result
	probed  []string
}

func (f *fakeProber) Probe(_ context.Context, streamURL string) prober.Result {
	f.mu.Lock()
	f.probed = append(f.probed, streamURL)
	f.mu.Unlock()
	if r, ok := f.results[streamURL]; ok {
		r.URL = streamURL
		return r
	}
	return prober.Result{URL: streamURL, Error: "connection refused"}
}

func liveResult(name, genre string, bitrate int) prober.Result {
	return prober.Result{
		OK:          true,
		IsLive:      true,
		ContentType: "audio/mpeg",
		Name:        models.KnownField(name),
		Genre:       models.KnownField(genre),
		Bitrate:     &bitrate,
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func serveDirectory(t *testing.T, xml string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(xml))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func stationByURL(t *testing.T, s store.Store, url string) *models.Station {
	t.Helper()
	stations, err := s.ListStations(context.Background())
	if err != nil {
		t.Fatalf("ListStations: %v", err)
	}
	for i := range stations {
		if stations[i].URL == url {
			return &stations[i]
		}
	}
	t.Fatalf("station %s not in catalog", url)
	return nil
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Already cataloged: must be skipped without a probe.
	known := &models.Station{URL: "https://known.example/live", Name: "Known", Genre: "pop", ContentType: "audio/mpeg", Online: true}
	if _, err := s.AddStation(ctx, known); err != nil {
		t.Fatalf("seed AddStation: %v", err)
	}

	dir := serveDirectory(t, `<?xml version="1.0"?>
<directory>
  <entry>
    <server_name>Declared Name</server_name>
    <listen_url>http://x.example/stream?ref=123</listen_url>
    <genre>declared genre</genre>
    <server_type>audio/mpeg</server_type>
    <bitrate>96</bitrate>
  </entry>
  <entry>
    <server_name>Known</server_name>
    <listen_url>https://known.example/live</listen_url>
    <genre>pop</genre>
  </entry>
  <entry>
    <server_name>Dead Air</server_name>
    <listen_url>https://dead.example/stream</listen_url>
    <genre>rock</genre>
  </entry>
</directory>`)

	fp := &fakeProber{results: map[string]prober.Result{
		"https://x.example/stream": liveResult("Test FM", "rock", 128),
	}}

	res, err := Ingest(ctx, s, fp, dir.URL, "test-agent", 2*time.Second, 1)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Added != 1 || res.Skipped != 1 || res.Failed != 1 {
		t.Errorf("result = %+v, want 1 added, 1 skipped, 1 failed", res)
	}

	// Tracking params are stripped and the scheme upgraded before storage.
	st := stationByURL(t, s, "https://x.example/stream")
	if st.Name != "Test FM" || st.Genre != "rock" {
		t.Errorf("probed metadata not preferred: name=%q genre=%q", st.Name, st.Genre)
	}
	if st.Bitrate == nil || *st.Bitrate != 128 {
		t.Errorf("bitrate = %v, want 128 from probe", st.Bitrate)
	}
	if !st.Online || st.Duplicate {
		t.Errorf("station health wrong: online=%v duplicate=%v", st.Online, st.Duplicate)
	}

	// The cataloged URL must not have been probed again.
	for _, u := range fp.probed {
		if u == "https://known.example/live" {
			t.Error("existing station was probed")
		}
	}
}

func TestIngestDeclaredFallback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	dir := serveDirectory(t, `<?xml version="1.0"?>
<directory>
  <entry>
    <server_name>Fallback FM</server_name>
    <listen_url>https://silent.example/stream</listen_url>
    <genre>jazz</genre>
    <bitrate>64</bitrate>
  </entry>
  <entry>
    <listen_url>https://bare.example/stream</listen_url>
  </entry>
</directory>`)

	// Both streams are live but report no metadata at all.
	silent := prober.Result{OK: true, IsLive: true, ContentType: "audio/aac"}
	fp := &fakeProber{results: map[string]prober.Result{
		"https://silent.example/stream": silent,
		"https://bare.example/stream":   silent,
	}}

	if _, err := Ingest(ctx, s, fp, dir.URL, "test-agent", 2*time.Second, 2); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	st := stationByURL(t, s, "https://silent.example/stream")
	if st.Name != "Fallback FM" || st.Genre != "jazz" {
		t.Errorf("declared values not used as fallback: name=%q genre=%q", st.Name, st.Genre)
	}
	if st.Bitrate == nil || *st.Bitrate != 64 {
		t.Errorf("declared bitrate not used: %v", st.Bitrate)
	}

	// Nothing declared and nothing probed leaves the Unknown sentinel.
	st = stationByURL(t, s, "https://bare.example/stream")
	if st.Name != models.Unknown || st.Genre != models.Unknown {
		t.Errorf("missing metadata = %q/%q, want %q", st.Name, st.Genre, models.Unknown)
	}
}

func TestIngestRepairsMetadata(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	dir := serveDirectory(t, `<?xml version="1.0"?>
<directory>
  <entry>
    <listen_url>https://mojibake.example/stream</listen_url>
  </entry>
</directory>`)

	res := liveResult("CafÃ© del Mar", "latin", 128)
	res.Homepage = models.KnownField("mojibake.example/")
	fp := &fakeProber{results: map[string]prober.Result{
		"https://mojibake.example/stream": res,
	}}

	if _, err := Ingest(ctx, s, fp, dir.URL, "test-agent", 2*time.Second, 1); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	st := stationByURL(t, s, "https://mojibake.example/stream")
	if st.Name != "Café del Mar" {
		t.Errorf("name = %q, want mojibake repaired", st.Name)
	}
	if st.Homepage == nil || *st.Homepage != "https://mojibake.example" {
		t.Errorf("homepage = %v, want rebuilt canonical URL", st.Homepage)
	}
}

func TestRevalidate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	live := &models.Station{URL: "https://live.example/stream", Name: "Old Name", Genre: "rock", ContentType: "audio/mpeg", Online: true}
	if _, err := s.AddStation(ctx, live); err != nil {
		t.Fatalf("AddStation: %v", err)
	}
	dead := &models.Station{URL: "https://dead.example/stream", Name: "Dead", Genre: "rock", ContentType: "audio/mpeg", Online: true}
	deadID, err := s.AddStation(ctx, dead)
	if err != nil {
		t.Fatalf("AddStation: %v", err)
	}

	fp := &fakeProber{results: map[string]prober.Result{
		"https://live.example/stream": liveResult("New Name", "indie rock", 192),
	}}

	stats, err := Revalidate(ctx, s, fp)
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if stats.Online != 1 || stats.Total != 2 {
		t.Errorf("stats = %+v, want 1/2 online", stats)
	}

	st := stationByURL(t, s, "https://live.example/stream")
	if st.Name != "New Name" || st.Genre != "indie rock" {
		t.Errorf("metadata not refreshed: name=%q genre=%q", st.Name, st.Genre)
	}
	if st.Bitrate == nil || *st.Bitrate != 192 {
		t.Errorf("bitrate = %v, want 192", st.Bitrate)
	}
	if !st.Online || st.Error != "" {
		t.Errorf("live station health wrong: online=%v error=%q", st.Online, st.Error)
	}

	got, err := s.GetStationByID(ctx, deadID)
	if err != nil {
		t.Fatalf("GetStationByID: %v", err)
	}
	if got.Online || got.Error == "" {
		t.Errorf("dead station not marked offline with reason: online=%v error=%q", got.Online, got.Error)
	}
	// The failure must not clobber the stored description.
	if got.Name != "Dead" {
		t.Errorf("offline station name overwritten: %q", got.Name)
	}
}

func TestRevalidateNormalizesStoredURL(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// A catalog row from before URL normalization existed.
	stale := &models.Station{URL: "http://legacy.example/stream?ref=old", Name: "Legacy", Genre: "rock", ContentType: "audio/mpeg"}
	if _, err := s.AddStation(ctx, stale); err != nil {
		t.Fatalf("AddStation: %v", err)
	}

	fp := &fakeProber{results: map[string]prober.Result{
		"https://legacy.example/stream": liveResult("Legacy", "rock", 128),
	}}

	if _, err := Revalidate(ctx, s, fp); err != nil {
		t.Fatalf("Revalidate: %v", err)
	}

	if len(fp.probed) != 1 || fp.probed[0] != "https://legacy.example/stream" {
		t.Fatalf("probed %v, want only the normalized URL", fp.probed)
	}
	st := stationByURL(t, s, "http://legacy.example/stream?ref=old")
	if !st.Online {
		t.Error("station not marked online after the normalized probe succeeded")
	}
}

func TestRevalidateSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	dup := &models.Station{URL: "https://dup.example/stream", Name: "Dup", Genre: "rock", ContentType: "audio/mpeg", Duplicate: true}
	if _, err := s.AddStation(ctx, dup); err != nil {
		t.Fatalf("AddStation: %v", err)
	}

	fp := &fakeProber{results: map[string]prober.Result{}}
	if _, err := Revalidate(ctx, s, fp); err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if len(fp.probed) != 0 {
		t.Errorf("duplicate row was probed: %v", fp.probed)
	}
}

func TestSweepDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	add := func(url, name string) int64 {
		t.Helper()
		id, err := s.AddStation(ctx, &models.Station{URL: url, Name: name, Genre: "rock", ContentType: "audio/mpeg", Online: true})
		if err != nil {
			t.Fatalf("AddStation(%s): %v", url, err)
		}
		return id
	}

	original := add("https://radio.example/high", "Radio X")
	nearName := add("https://radio.example/low", "Radio X!")
	samePath := add("https://radio.example/high?format=aac", "Completely Different")
	otherHost := add("https://other.example/high", "Radio X")

	flagged, err := SweepDuplicates(ctx, s)
	if err != nil {
		t.Fatalf("SweepDuplicates: %v", err)
	}
	if flagged != 2 {
		t.Errorf("flagged = %d, want 2", flagged)
	}

	for id, wantDup := range map[int64]bool{
		original:  false,
		nearName:  true,
		samePath:  true,
		otherHost: false,
	} {
		st, err := s.GetStationByID(ctx, id)
		if err != nil {
			t.Fatalf("GetStationByID(%d): %v", id, err)
		}
		if st.Duplicate != wantDup {
			t.Errorf("station %d duplicate = %v, want %v", id, st.Duplicate, wantDup)
		}
	}

	// A second sweep finds nothing new.
	flagged, err = SweepDuplicates(ctx, s)
	if err != nil || flagged != 0 {
		t.Errorf("second sweep = %d, %v; want 0, nil", flagged, err)
	}
}
