package main

import (
	"os"
	"strings"
	"time"

	"github.com/InjectiveLabs/metrics"
	log "github.com/InjectiveLabs/suplog"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/xlab/closer"

	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle"
)

// readEnv loads .env from the working directory. Variables already set in the
// environment take precedence.
func readEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warningln("failed to read .env file")
	}
}

// loadNetworksConfig reads the TOML networks file, or returns the built-in
// deployment if no path is given.
func loadNetworksConfig(path string) (*oracle.NetworksConfig, error) {
	if len(path) == 0 {
		return oracle.DefaultNetworksConfig(), nil
	}

	cfgBody, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "failed to read networks config %s", path)
		return nil, err
	}

	return oracle.ParseNetworksConfig(cfgBody)
}

// startMetricsGathering initializes the statsd client in the background, retrying
// until the aggregator address can be resolved.
func startMetricsGathering(
	statsdPrefix *string,
	statsdAddr *string,
	statsdAgent *string,
	statsdStuckDur *string,
	statsdMocking *string,
	statsdDisabled *string,
) {
	if toBool(*statsdDisabled) {
		// reports are no-ops until a client is initialized
		return
	}

	go func() {
		for {
			cfg := statterConfig(*envName, *statsdAgent, *statsdStuckDur, *statsdMocking)
			err := metrics.Init(*statsdAddr, checkStatsdPrefix(*statsdPrefix), cfg)
			if err != nil {
				log.WithError(err).Warningln("metrics init failed, will retry in 1 min")
				time.Sleep(time.Minute)
				continue
			}
			break
		}

		closer.Bind(func() {
			metrics.Close()
		})
	}()
}

func statterConfig(env, agent, stuckDur, mocking string) *metrics.StatterConfig {
	hostname, _ := os.Hostname()

	return &metrics.StatterConfig{
		Agent:                agent,
		EnvName:              env,
		HostName:             hostname,
		StuckFunctionTimeout: duration(stuckDur, 5*time.Minute),
		MockingEnabled:       toBool(mocking) || env == "local",
	}
}

func logLevel(s string) log.Level {
	switch s {
	case "1", "error":
		return log.ErrorLevel
	case "2", "warn":
		return log.WarnLevel
	case "3", "info":
		return log.InfoLevel
	case "4", "debug":
		return log.DebugLevel
	default:
		return log.FatalLevel
	}
}

func toBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "t", "yes":
		return true
	default:
		return false
	}
}

func duration(s string, defaults time.Duration) time.Duration {
	dur, err := time.ParseDuration(s)
	if err != nil {
		dur = defaults
	}

	return dur
}

func checkStatsdPrefix(s string) string {
	if !strings.HasSuffix(s, ".") {
		return s + "."
	}

	return s
}
