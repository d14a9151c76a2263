package coingecko

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/InjectiveLabs/metrics"
	log "github.com/InjectiveLabs/suplog"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/types"
)

const (
	// SourceLabel is stored on-chain next to every price pulled from CoinGecko.
	SourceLabel = "CoinGecko"

	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	// DefaultRateLimitPerMin keeps the node under the public API quota.
	DefaultRateLimitPerMin = 30

	maxRespTime        = 15 * time.Second
	maxRespHeadersTime = 15 * time.Second
	maxRespBytes       = 1024 * 1024
	vsCurrency         = "usd"
)

var _ types.PriceSource = &coingeckoPriceFeed{}

type Config struct {
	BaseURL string
	APIKey  string

	// RateLimitPerMin caps outgoing requests, 0 uses DefaultRateLimitPerMin,
	// a negative value disables limiting.
	RateLimitPerMin int

	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client
}

func checkConfig(cfg *Config) *Config {
	if cfg == nil {
		cfg = &Config{}
	}

	if len(cfg.BaseURL) == 0 {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.RateLimitPerMin == 0 {
		cfg.RateLimitPerMin = DefaultRateLimitPerMin
	}

	return cfg
}

// NewPriceFeed returns a price source backed by the CoinGecko simple price endpoint.
// Every Fetch performs exactly one request and never retries.
func NewPriceFeed(cfg *Config) types.PriceSource {
	cfg = checkConfig(cfg)

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: maxRespHeadersTime,
			},
			Timeout: maxRespTime,
		}
	}

	limit := rate.Inf
	burst := 1
	if cfg.RateLimitPerMin > 0 {
		limit = rate.Limit(float64(cfg.RateLimitPerMin) / 60.0)
		burst = cfg.RateLimitPerMin / 6
		if burst < 1 {
			burst = 1
		}
	}

	return &coingeckoPriceFeed{
		client:  client,
		config:  cfg,
		limiter: rate.NewLimiter(limit, burst),

		logger: log.WithFields(log.Fields{
			"svc":      "oracle",
			"provider": SourceLabel,
		}),
		svcTags: metrics.Tags{
			"provider": "coingecko",
		},
	}
}

type coingeckoPriceFeed struct {
	client  *http.Client
	config  *Config
	limiter *rate.Limiter

	logger  log.Logger
	svcTags metrics.Tags
}

func (f *coingeckoPriceFeed) Fetch(ctx context.Context, asset types.Asset) (quote *types.PriceQuote, err error) {
	defer metrics.ReportFuncCallAndTimingWithErr(f.svcTags)(&err)

	price, err := f.pullPrice(ctx, asset)
	if err != nil {
		return nil, types.NewFetchError(asset, err)
	}

	fixedPoint, err := types.ToFixedPoint(price)
	if err != nil {
		return nil, types.NewFetchError(asset, err)
	}

	quote = &types.PriceQuote{
		Asset:           asset,
		RawPrice:        price,
		FixedPointPrice: fixedPoint,
		Source:          SourceLabel,
		FetchedAt:       time.Now(),
	}

	return quote, nil
}

func (f *coingeckoPriceFeed) pullPrice(ctx context.Context, asset types.Asset) (decimal.Decimal, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return decimal.Zero, errors.Wrap(err, "rate limiter")
	}

	u, err := url.ParseRequestURI(urlJoin(f.config.BaseURL, "simple", "price"))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to parse base URL %s", f.config.BaseURL)
	}

	q := make(url.Values)
	q.Set("ids", asset.String())
	q.Set("vs_currencies", vsCurrency)
	u.RawQuery = q.Encode()
	reqURL := u.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to create HTTP request")
	}
	req.Header.Set("Accept", "application/json")
	if len(f.config.APIKey) > 0 {
		req.Header.Set(f.apiKeyHeader(), f.config.APIKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to fetch price from %s", reqURL)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxRespBytes))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to read response body from %s", reqURL)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decimal.Zero, errors.Errorf("unexpected status %d from %s: %s", resp.StatusCode, reqURL, bestEffortExtractError(respBody))
	}

	var priceResp simplePriceResp
	if err := json.Unmarshal(respBody, &priceResp); err != nil {
		f.logger.WithField("url", reqURL).Debugln(string(respBody))
		return decimal.Zero, errors.Wrapf(err, "failed to unmarshal response body for %s", asset)
	}

	currencies, ok := priceResp[asset.String()]
	if !ok {
		return decimal.Zero, errors.Errorf("asset %s is missing in response", asset)
	}

	rawPrice, ok := currencies[vsCurrency]
	if !ok || string(rawPrice) == "null" {
		return decimal.Zero, errors.Errorf("%s price of %s is missing in response", vsCurrency, asset)
	}

	price, err := decimal.NewFromString(strings.Trim(string(rawPrice), `"`))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "malformed %s price of %s", vsCurrency, asset)
	}

	f.logger.WithFields(log.Fields{
		"asset": asset,
		"price": price.String(),
	}).Debugln("pulled price")

	return price, nil
}

func (f *coingeckoPriceFeed) apiKeyHeader() string {
	if strings.Contains(f.config.BaseURL, "pro-api.") {
		return "x-cg-pro-api-key"
	}

	return "x-cg-demo-api-key"
}
