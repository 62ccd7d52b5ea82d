package nse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotBody = `{
  "name": "NIFTY 50",
  "data": [
    {"priority": 1, "symbol": "NIFTY 50", "lastPrice": 24000},
    {"priority": 0, "symbol": "RELIANCE", "open": 1300, "dayHigh": 1320.5, "dayLow": 1290, "lastPrice": 1310,
     "previousClose": 1295, "change": 15, "pChange": 1.16, "totalTradedVolume": 8123456, "totalTradedValue": 1.06e10,
     "yearHigh": 1608.8, "yearLow": 1201.5, "meta": {"companyName": "Reliance Industries Limited"}},
    {"priority": 0, "symbol": "tcs", "dayHigh": 4100, "totalTradedVolume": 1500}
  ]
}`

func newTestServer(t *testing.T, primes *atomic.Int32, status *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		primes.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "abc"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/equity-stockIndices", func(w http.ResponseWriter, r *http.Request) {
		if code := status.Load(); code != 0 {
			w.WriteHeader(int(code))
			return
		}
		if r.URL.Query().Get("index") != "NIFTY 50" {
			t.Errorf("unexpected index %q", r.URL.Query().Get("index"))
		}
		if _, err := r.Cookie("nsit"); err != nil {
			t.Errorf("expected session cookie")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(snapshotBody))
	})
	mux.HandleFunc("/api/marketStatus", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"marketState":[{"market":"Currency","marketStatus":"Open"},{"market":"Capital Market","marketStatus":"Closed"}]}`))
	})
	return httptest.NewServer(mux)
}

func TestClient_FetchSnapshot(t *testing.T) {
	var primes, status atomic.Int32
	ts := newTestServer(t, &primes, &status)
	defer ts.Close()

	logger, _ := test.NewNullLogger()
	c := NewClient(Config{BaseURL: ts.URL}, logger)

	snap, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Stocks, 2)

	rel, ok := snap.Find("RELIANCE")
	require.True(t, ok)
	assert.Equal(t, "Reliance Industries Limited", rel.Name)
	assert.Equal(t, 1320.5, rel.DayHigh)
	assert.Equal(t, int64(8123456), rel.TotalTradedVolume)
	assert.Equal(t, 1295.0, rel.PreviousClose)
	_, ok = snap.Find("TCS")
	assert.True(t, ok)

	_, err = c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), primes.Load(), "session should be reused")

	status.Store(http.StatusForbidden)
	_, err = c.FetchSnapshot(context.Background())
	require.Error(t, err)
	status.Store(0)
	_, err = c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), primes.Load(), "forbidden should force a new session")
}

func TestClient_FetchMarketStatus(t *testing.T) {
	var primes, status atomic.Int32
	ts := newTestServer(t, &primes, &status)
	defer ts.Close()

	c := NewClient(Config{BaseURL: ts.URL, RequestsPerSecond: 100, Burst: 10}, nil)
	open, err := c.FetchMarketStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, open)
}

func TestClient_EmptySnapshotIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"NIFTY 50","data":[{"priority":1,"symbol":"NIFTY 50"}]}`))
	}))
	defer ts.Close()

	_, err := NewClient(Config{BaseURL: ts.URL}, nil).FetchSnapshot(context.Background())
	assert.Error(t, err)
}
