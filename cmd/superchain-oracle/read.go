package main

import (
	"context"
	"os"
	"time"

	log "github.com/InjectiveLabs/suplog"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	cli "github.com/jawher/mow.cli"
	"github.com/xlab/closer"

	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle"
	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/types"
)

// readCmd action prints getPrice of every configured asset on every usable network.
//
// $ superchain-oracle read
func readCmd(cmd *cli.Cmd) {
	var (
		networksConfig *string
		oraclePrivKey  *string
	)

	initNetworksOptions(
		cmd,
		&networksConfig,
		&oraclePrivKey,
	)

	cmd.Action = func() {
		// ensure a clean exit
		defer closer.Close()

		networksCfg, err := loadNetworksConfig(*networksConfig)
		if err != nil {
			log.WithError(err).Fatalln("failed to load networks config")
		}

		specs, assets, err := networksCfg.Resolve(os.Getenv)
		if err != nil {
			log.WithError(err).Fatalln("invalid networks config")
		}

		waitTimeout := duration(*svcWaitTimeout, 30*time.Second)

		// reads never sign, an ephemeral key is enough to bind the contracts
		readKey := *oraclePrivKey
		if len(readKey) == 0 {
			key, err := crypto.GenerateKey()
			if err != nil {
				log.WithError(err).Fatalln("failed to generate ephemeral key")
			}
			readKey = hexutil.Encode(crypto.FromECDSA(key))
		}

		registry, err := oracle.BuildRegistry(context.Background(), specs, readKey, oracle.RegistryOptions{
			Observer:     oracle.NewLogObserver(log.WithField("svc", "oracle")),
			SetupTimeout: waitTimeout,
		})
		if err != nil {
			log.WithError(err).Fatalln("failed to build network registry")
		}
		closer.Bind(registry.Close)

		for _, network := range registry.Networks() {
			binding, _ := registry.Get(network)

			for _, asset := range assets {
				readPrice(binding, asset, waitTimeout)
			}
		}
	}
}

func readPrice(binding *oracle.NetworkBinding, asset types.Asset, timeout time.Duration) {
	ctx, cancelFn := context.WithTimeout(context.Background(), timeout)
	defer cancelFn()

	priceLogger := log.WithFields(log.Fields{
		"network": binding.Name.String(),
		"asset":   asset.String(),
	})

	stored, err := binding.Contract.GetPrice(ctx, asset.String())
	if err != nil {
		priceLogger.WithError(err).Errorln("failed to read price")
		return
	}

	if stored.Price.Sign() == 0 && len(stored.Source) == 0 {
		priceLogger.Warningln("no price stored yet")
		return
	}

	priceLogger.WithFields(log.Fields{
		"price":       types.FromFixedPoint(stored.Price).String(),
		"fixed_point": stored.Price.String(),
		"source":      stored.Source,
		"updated_at":  stored.Timestamp.Format(time.RFC3339),
	}).Infoln("stored price")
}
