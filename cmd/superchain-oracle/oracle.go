package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/InjectiveLabs/metrics"
	log "github.com/InjectiveLabs/suplog"
	cli "github.com/jawher/mow.cli"
	"github.com/pkg/errors"
	"github.com/xlab/closer"

	"github.com/superchain-oracle/superchain-oracle/internal/service/health"
	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle"
	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/coingecko"
	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/evm"
	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/types"
)

// oracleCmd action runs the service
//
// $ superchain-oracle start
func oracleCmd(cmd *cli.Cmd) {
	var (
		// Networks params
		networksConfig *string
		oraclePrivKey  *string

		// CoinGecko params
		coingeckoURL       *string
		coingeckoAPIKey    *string
		coingeckoRateLimit *int

		// Update cycle params
		updateInterval  *string
		pipelineTimeout *string
		maxParallel     *int
		gasLimit        *int

		healthListenAddress *string

		// Metrics
		statsdPrefix   *string
		statsdAddr     *string
		statsdAgent    *string
		statsdStuckDur *string
		statsdMocking  *string
		statsdDisabled *string
	)

	initNetworksOptions(
		cmd,
		&networksConfig,
		&oraclePrivKey,
	)

	initCoinGeckoOptions(
		cmd,
		&coingeckoURL,
		&coingeckoAPIKey,
		&coingeckoRateLimit,
	)

	initUpdateOptions(
		cmd,
		&updateInterval,
		&pipelineTimeout,
		&maxParallel,
		&gasLimit,
	)

	initHealthOptions(
		cmd,
		&healthListenAddress,
	)

	initStatsdOptions(
		cmd,
		&statsdPrefix,
		&statsdAddr,
		&statsdAgent,
		&statsdStuckDur,
		&statsdMocking,
		&statsdDisabled,
	)

	cmd.Action = func() {
		ctx, cancelFn := context.WithCancel(context.Background())
		// ensure a clean exit
		defer closer.Close()
		closer.Bind(cancelFn)

		startMetricsGathering(
			statsdPrefix,
			statsdAddr,
			statsdAgent,
			statsdStuckDur,
			statsdMocking,
			statsdDisabled,
		)

		networksCfg, err := loadNetworksConfig(*networksConfig)
		if err != nil {
			log.WithError(err).Fatalln("failed to load networks config")
		}

		specs, assets, err := networksCfg.Resolve(os.Getenv)
		if err != nil {
			log.WithError(err).Fatalln("invalid networks config")
		}

		observer := oracle.NewLogObserver(log.WithField("svc", "oracle"))

		registry, err := oracle.BuildRegistry(ctx, specs, *oraclePrivKey, oracle.RegistryOptions{
			Observer:     observer,
			SetupTimeout: duration(*svcWaitTimeout, 30*time.Second),
			Oracle: evm.Options{
				GasLimit: uint64(max(*gasLimit, 0)),
			},
		})
		if errors.Is(err, types.ErrNoUsableNetworks) {
			log.WithError(err).Fatalln("none of the configured networks could be set up")
		} else if err != nil {
			log.WithError(err).Fatalln("failed to build network registry")
		}
		closer.Bind(registry.Close)

		log.Infof("%d of %d configured networks are usable", registry.Len(), len(specs))

		priceSource := coingecko.NewPriceFeed(&coingecko.Config{
			BaseURL:         *coingeckoURL,
			APIKey:          *coingeckoAPIKey,
			RateLimitPerMin: *coingeckoRateLimit,
		})

		interval := duration(*updateInterval, time.Minute)
		svc, err := oracle.NewService(
			registry,
			oracle.NewExecutor(priceSource, observer),
			observer,
			oracle.Config{
				Assets:          assets,
				Interval:        interval,
				PipelineTimeout: duration(*pipelineTimeout, 2*time.Minute),
				MaxParallel:     *maxParallel,
			},
		)
		if err != nil {
			log.WithError(err).Fatalln("failed to init oracle service")
		}

		if len(*healthListenAddress) > 0 {
			startHealthServer(*healthListenAddress, registry, svc, 3*interval)
		}

		if err := svc.Start(ctx); err != nil {
			log.WithError(err).Fatalln("first update cycle failed")
		}
		closer.Bind(svc.Close)

		go func() {
			if err := svc.Wait(); err != nil {
				log.WithError(err).Errorln("oracle update loop failed")

				// signal there that the app failed
				closer.Exit(1)
			}
		}()

		closer.Hold()
	}
}

func startHealthServer(listenAddress string, registry *oracle.Registry, svc oracle.Service, staleAfter time.Duration) {
	healthSvc := health.NewHealthService(log.WithField("svc", "health"), metrics.Tags{
		"svc": "health",
	}, func() health.Snapshot {
		return health.Snapshot{
			Networks:           registry.Len(),
			Excluded:           len(registry.Missing()),
			LastCycleStartedAt: svc.LastCycleStartedAt(),
		}
	}, staleAfter)

	httpSrv := &http.Server{
		Addr:              listenAddress,
		Handler:           healthSvc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	closer.Bind(func() {
		shutdownCtx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelFn()

		_ = httpSrv.Shutdown(shutdownCtx)
	})

	go func() {
		log.Infof("health endpoint listening on %s", listenAddress)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Errorln("failed to start health HTTP server")
		}
	}()
}
