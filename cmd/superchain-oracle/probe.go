package main

import (
	"context"
	"time"

	log "github.com/InjectiveLabs/suplog"
	cli "github.com/jawher/mow.cli"
	"github.com/xlab/closer"

	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/coingecko"
	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/types"
)

// probeCmd action fetches one quote for ASSET and prints the raw and fixed-point price.
//
// $ superchain-oracle probe <ASSET>
func probeCmd(cmd *cli.Cmd) {
	var (
		coingeckoURL       *string
		coingeckoAPIKey    *string
		coingeckoRateLimit *int
	)

	assetArg := cmd.StringArg("ASSET", "", "CoinGecko asset id, e.g. ethereum")

	initCoinGeckoOptions(
		cmd,
		&coingeckoURL,
		&coingeckoAPIKey,
		&coingeckoRateLimit,
	)

	cmd.Action = func() {
		// ensure a clean exit
		defer closer.Close()

		asset, err := types.ParseAsset(*assetArg)
		if err != nil {
			log.WithError(err).Errorln("invalid asset")
			return
		}

		priceSource := coingecko.NewPriceFeed(&coingecko.Config{
			BaseURL:         *coingeckoURL,
			APIKey:          *coingeckoAPIKey,
			RateLimitPerMin: *coingeckoRateLimit,
		})

		ctx, cancelFn := context.WithTimeout(context.Background(), duration(*svcWaitTimeout, 30*time.Second))
		defer cancelFn()

		quote, err := priceSource.Fetch(ctx, asset)
		if err != nil {
			log.WithError(err).Errorln("failed to fetch price")
			return
		}

		log.WithFields(log.Fields{
			"asset":  quote.Asset.String(),
			"source": quote.Source,
		}).Infof("Answer: %s USD (fixed-point %s)", quote.RawPrice.String(), quote.FixedPointPrice.String())
	}
}
