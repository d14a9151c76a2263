package main

import (
	"fmt"
	"os"

	log "github.com/InjectiveLabs/suplog"
	cli "github.com/jawher/mow.cli"

	"github.com/superchain-oracle/superchain-oracle/version"
)

var app = cli.App("superchain-oracle", "Relays CoinGecko prices to oracle contracts on multiple EVM networks.")

var (
	envName        *string
	appLogLevel    *string
	svcWaitTimeout *string
)

func main() {
	readEnv()
	initGlobalOptions(
		&envName,
		&appLogLevel,
		&svcWaitTimeout,
	)

	app.Before = func() {
		log.DefaultLogger.SetLevel(logLevel(*appLogLevel))
	}

	app.Command("start", "Starts the oracle update cycles.", oracleCmd)
	app.Command("probe", "Fetches a single price quote and prints it.", probeCmd)
	app.Command("read", "Reads stored prices from every configured network.", readCmd)
	app.Command("version", "Print the version information and exit.", versionCmd)

	_ = app.Run(os.Args)
}

func versionCmd(c *cli.Cmd) {
	c.Action = func() {
		fmt.Println(version.Version())
	}
}
