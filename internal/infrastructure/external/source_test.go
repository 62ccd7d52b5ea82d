package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	appmd "nifty-breakout/internal/application/marketdata"
	"nifty-breakout/internal/infrastructure/external/nse"
	"nifty-breakout/internal/infrastructure/external/yahoo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ appmd.Source = (*Source)(nil)

func TestSource_RoutesToUpstreams(t *testing.T) {
	nseSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/marketStatus" {
			_, _ = w.Write([]byte(`{"marketState":[{"market":"Capital Market","marketStatus":"Open"}]}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer nseSrv.Close()
	yahooSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer yahooSrv.Close()

	src := NewSource(nse.NewClient(nse.Config{BaseURL: nseSrv.URL}, nil), yahoo.NewClient(yahoo.Config{BaseURL: yahooSrv.URL}, nil))

	open, err := src.FetchMarketStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, open)

	_, err = src.FetchHistorical(context.Background(), "TCS", 5)
	assert.Error(t, err)
}
