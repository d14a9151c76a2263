package coingecko

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/types"
	"github.com/superchain-oracle/superchain-oracle/internal/testutil"
)

func newTestFeed(baseURL string) types.PriceSource {
	return NewPriceFeed(&Config{
		BaseURL:         baseURL,
		APIKey:          "demo-key",
		RateLimitPerMin: -1,
	})
}

func TestFetchConvertsToFixedPoint(t *testing.T) {
	srv := testutil.StartCoinGecko(t, map[string]string{
		"ethereum": "2500.12",
		"bitcoin":  "50000.00",
	})
	feed := newTestFeed(srv.URL)

	quote, err := feed.Fetch(context.Background(), "ethereum")
	require.NoError(t, err)
	assert.Equal(t, types.Asset("ethereum"), quote.Asset)
	assert.Equal(t, "2500.12", quote.RawPrice.String())
	assert.Equal(t, "250012000000", quote.FixedPointPrice.String())
	assert.Equal(t, SourceLabel, quote.Source)

	quote, err = feed.Fetch(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "5000000000000", quote.FixedPointPrice.String())

	assert.Equal(t, 2, srv.Requests())
	assert.Equal(t, "demo-key", srv.LastAPIKey())
}

func TestFetchFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(srv *testutil.CoinGeckoServer)
	}{
		{
			name:  "malformed body",
			setup: func(srv *testutil.CoinGeckoServer) { srv.SetBody("bitcoin", `{"bitcoin":{"usd":`) },
		},
		{
			name:  "asset missing",
			setup: func(srv *testutil.CoinGeckoServer) {},
		},
		{
			name:  "usd missing",
			setup: func(srv *testutil.CoinGeckoServer) { srv.SetBody("bitcoin", `{"bitcoin":{"eur":1}}`) },
		},
		{
			name:  "null price",
			setup: func(srv *testutil.CoinGeckoServer) { srv.SetBody("bitcoin", `{"bitcoin":{"usd":null}}`) },
		},
		{
			name:  "non numeric price",
			setup: func(srv *testutil.CoinGeckoServer) { srv.SetBody("bitcoin", `{"bitcoin":{"usd":{"v":1}}}`) },
		},
		{
			name:  "negative price",
			setup: func(srv *testutil.CoinGeckoServer) { srv.SetPrice("bitcoin", "-1") },
		},
		{
			name:  "rate limited",
			setup: func(srv *testutil.CoinGeckoServer) { srv.SetStatus("bitcoin", http.StatusTooManyRequests) },
		},
		{
			name:  "server error",
			setup: func(srv *testutil.CoinGeckoServer) { srv.SetStatus("bitcoin", http.StatusBadGateway) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.StartCoinGecko(t, nil)
			tt.setup(srv)

			quote, err := newTestFeed(srv.URL).Fetch(context.Background(), "bitcoin")
			require.Error(t, err)
			assert.Nil(t, quote)

			var fetchErr *types.FetchError
			require.True(t, errors.As(err, &fetchErr))
			assert.Equal(t, types.Asset("bitcoin"), fetchErr.Asset)

			// exactly one request per call, no internal retry
			assert.Equal(t, 1, srv.Requests())
		})
	}
}

func TestFetchUnreachable(t *testing.T) {
	srv := testutil.StartCoinGecko(t, nil)
	baseURL := srv.URL
	srv.Close()

	_, err := newTestFeed(baseURL).Fetch(context.Background(), "ethereum")

	var fetchErr *types.FetchError
	require.True(t, errors.As(err, &fetchErr))
}

func TestFetchHonoursContext(t *testing.T) {
	srv := testutil.StartCoinGecko(t, map[string]string{"ethereum": "1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFeed(srv.URL).Fetch(ctx, "ethereum")
	require.Error(t, err)
	assert.Equal(t, 0, srv.Requests())
}

func TestFetchRateLimited(t *testing.T) {
	srv := testutil.StartCoinGecko(t, map[string]string{"ethereum": "1"})
	feed := NewPriceFeed(&Config{
		BaseURL:         srv.URL,
		RateLimitPerMin: 1,
	})

	_, err := feed.Fetch(context.Background(), "ethereum")
	require.NoError(t, err)

	// the bucket is drained, the next call must wait for about a minute
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = feed.Fetch(ctx, "ethereum")
	require.Error(t, err)
	assert.Equal(t, 1, srv.Requests())
}

func TestAPIKeyHeader(t *testing.T) {
	pro := NewPriceFeed(&Config{BaseURL: "https://pro-api.coingecko.com/api/v3"}).(*coingeckoPriceFeed)
	assert.Equal(t, "x-cg-pro-api-key", pro.apiKeyHeader())

	demo := NewPriceFeed(nil).(*coingeckoPriceFeed)
	assert.Equal(t, "x-cg-demo-api-key", demo.apiKeyHeader())
	assert.Equal(t, DefaultBaseURL, demo.config.BaseURL)
}
