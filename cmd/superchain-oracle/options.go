package main

import (
	"github.com/InjectiveLabs/metrics"
	cli "github.com/jawher/mow.cli"
)

// initGlobalOptions defines some global CLI options, that are useful for most parts of the app.
// Before adding option to there, consider moving it into the actual Cmd.
func initGlobalOptions(
	envName **string,
	appLogLevel **string,
	svcWaitTimeout **string,
) {
	*envName = app.String(cli.StringOpt{
		Name:   "e env",
		Desc:   "The environment name this app runs in. Used for metrics and error reporting.",
		EnvVar: "ORACLE_ENV",
		Value:  "local",
	})

	*appLogLevel = app.String(cli.StringOpt{
		Name:   "l log-level",
		Desc:   "Available levels: error, warn, info, debug.",
		EnvVar: "ORACLE_LOG_LEVEL",
		Value:  "info",
	})

	*svcWaitTimeout = app.String(cli.StringOpt{
		Name:   "svc-wait-timeout",
		Desc:   "Standard wait timeout for external services (e.g. setting up a network RPC connection)",
		EnvVar: "ORACLE_SERVICE_WAIT_TIMEOUT",
		Value:  "30s",
	})
}

func initNetworksOptions(
	cmd *cli.Cmd,
	networksConfig **string,
	oraclePrivKey **string,
) {
	*networksConfig = cmd.String(cli.StringOpt{
		Name:   "networks-config",
		Desc:   "Path to networks configuration file in TOML format. Built-in Sepolia and OP Sepolia deployment is used if empty.",
		EnvVar: "ORACLE_NETWORKS_CONFIG",
	})

	*oraclePrivKey = cmd.String(cli.StringOpt{
		Name:   "oracle-pk",
		Desc:   "Hex private key of the oracle signer, shared by networks without their own privateKeyEnv.",
		EnvVar: "ORACLE_PRIVATE_KEY",
	})
}

func initCoinGeckoOptions(
	cmd *cli.Cmd,
	coingeckoURL **string,
	coingeckoAPIKey **string,
	coingeckoRateLimit **int,
) {
	*coingeckoURL = cmd.String(cli.StringOpt{
		Name:   "coingecko-url",
		Desc:   "CoinGecko API Base URL",
		EnvVar: "ORACLE_COINGECKO_URL",
		Value:  "https://api.coingecko.com/api/v3",
	})

	*coingeckoAPIKey = cmd.String(cli.StringOpt{
		Name:   "coingecko-api-key",
		Desc:   "CoinGecko demo or pro API key, sent as a header if set.",
		EnvVar: "ORACLE_COINGECKO_API_KEY",
	})

	*coingeckoRateLimit = cmd.Int(cli.IntOpt{
		Name:   "coingecko-rate-limit",
		Desc:   "Max CoinGecko requests per minute, 0 uses the public API quota, negative disables limiting.",
		EnvVar: "ORACLE_COINGECKO_RATE_LIMIT",
		Value:  0,
	})
}

func initUpdateOptions(
	cmd *cli.Cmd,
	updateInterval **string,
	pipelineTimeout **string,
	maxParallel **int,
	gasLimit **int,
) {
	*updateInterval = cmd.String(cli.StringOpt{
		Name:   "update-interval",
		Desc:   "Interval between update cycle starts.",
		EnvVar: "ORACLE_UPDATE_INTERVAL",
		Value:  "60s",
	})

	*pipelineTimeout = cmd.String(cli.StringOpt{
		Name:   "pipeline-timeout",
		Desc:   "Timeout of a single network and asset update, including confirmation wait.",
		EnvVar: "ORACLE_PIPELINE_TIMEOUT",
		Value:  "2m",
	})

	*maxParallel = cmd.Int(cli.IntOpt{
		Name:   "max-parallel",
		Desc:   "Max concurrent updates within a cycle, 0 means no limit.",
		EnvVar: "ORACLE_MAX_PARALLEL",
		Value:  0,
	})

	*gasLimit = cmd.Int(cli.IntOpt{
		Name:   "gas-limit",
		Desc:   "Gas limit of updatePrice transactions, 0 means estimate.",
		EnvVar: "ORACLE_GAS_LIMIT",
		Value:  0,
	})
}

func initHealthOptions(
	cmd *cli.Cmd,
	healthListenAddress **string,
) {
	*healthListenAddress = cmd.String(cli.StringOpt{
		Name:   "health-listen",
		Desc:   "Address to serve GET /health on, disabled if empty (e.g. 0.0.0.0:9924).",
		EnvVar: "ORACLE_HEALTH_LISTEN",
	})
}

// initStatsdOptions sets options for StatsD metrics.
func initStatsdOptions(
	cmd *cli.Cmd,
	statsdPrefix **string,
	statsdAddr **string,
	statsdAgent **string,
	statsdStuckDur **string,
	statsdMocking **string,
	statsdDisabled **string,
) {
	*statsdPrefix = cmd.String(cli.StringOpt{
		Name:   "statsd-prefix",
		Desc:   "Specify StatsD compatible metrics prefix.",
		EnvVar: "ORACLE_STATSD_PREFIX",
		Value:  "oracle",
	})

	*statsdAddr = cmd.String(cli.StringOpt{
		Name:   "statsd-addr",
		Desc:   "UDP address of a StatsD compatible metrics aggregator.",
		EnvVar: "ORACLE_STATSD_ADDR",
		Value:  "localhost:8125",
	})

	*statsdAgent = cmd.String(cli.StringOpt{
		Name:   "statsd-agent",
		Desc:   "StatsD agent flavour, telegraf or datadog.",
		EnvVar: "ORACLE_STATSD_AGENT",
		Value:  metrics.TelegrafAgent,
	})

	*statsdStuckDur = cmd.String(cli.StringOpt{
		Name:   "statsd-stuck-func",
		Desc:   "Sets a duration to consider a function to be stuck (e.g. in deadlock).",
		EnvVar: "ORACLE_STATSD_STUCK_DUR",
		Value:  "5m",
	})

	*statsdMocking = cmd.String(cli.StringOpt{
		Name:   "statsd-mocking",
		Desc:   "If enabled replaces statsd client with a mock one that simply logs values.",
		EnvVar: "ORACLE_STATSD_MOCKING",
		Value:  "false",
	})

	*statsdDisabled = cmd.String(cli.StringOpt{
		Name:   "statsd-disabled",
		Desc:   "Force disabling statsd reporting completely.",
		EnvVar: "ORACLE_STATSD_DISABLED",
		Value:  "true",
	})
}
