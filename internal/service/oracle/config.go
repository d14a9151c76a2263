package oracle

import (
	"bytes"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/types"
)

// NetworksConfig is the TOML networks file:
//
//	assets = ["ethereum", "bitcoin"]
//
//	[networks.sepolia]
//	rpcEnv = "SEPOLIA_RPC_URL"
//	contract = "0x9a6C16DbB82a5158Db462b2F48e887B8ae1Dfc07"
//	chainId = 11155111
type NetworksConfig struct {
	Assets   []string                 `toml:"assets"`
	Networks map[string]NetworkConfig `toml:"networks"`
}

type NetworkConfig struct {
	// RPC is the endpoint URL, RPCEnv names an env var holding it instead.
	RPC    string `toml:"rpc"`
	RPCEnv string `toml:"rpcEnv"`

	Contract string `toml:"contract"`

	// ChainID is checked against eth_chainId when set.
	ChainID uint64 `toml:"chainId"`

	// PrivateKeyEnv names an env var with a network specific signing key.
	// The shared oracle key is used when it is empty.
	PrivateKeyEnv string `toml:"privateKeyEnv"`
}

// NetworkSpec is a resolved network entry, input of BuildRegistry.
type NetworkSpec struct {
	Name       types.Network
	Endpoint   string
	Contract   string
	ChainID    uint64
	PrivateKey string
}

// DefaultNetworksConfig is the reference deployment on Sepolia and OP Sepolia.
func DefaultNetworksConfig() *NetworksConfig {
	return &NetworksConfig{
		Assets: []string{"ethereum", "bitcoin"},
		Networks: map[string]NetworkConfig{
			"sepolia": {
				RPCEnv:   "SEPOLIA_RPC_URL",
				Contract: "0x9a6C16DbB82a5158Db462b2F48e887B8ae1Dfc07",
				ChainID:  11155111,
			},
			"optimismSepolia": {
				RPCEnv:   "OP_SEPOLIA_RPC_URL",
				Contract: "0xA4cC77Be2edC5CEeeF5771e2Fa03204aF2A6e141",
				ChainID:  11155420,
			},
		},
	}
}

func ParseNetworksConfig(body []byte) (*NetworksConfig, error) {
	var config NetworksConfig

	dec := toml.NewDecoder(bytes.NewReader(body)).DisallowUnknownFields()
	if err := dec.Decode(&config); err != nil {
		err = errors.Wrap(err, "failed to unmarshal TOML config")
		return nil, err
	}

	return &config, nil
}

// Resolve validates the config and expands env references. Networks are returned
// sorted by name, assets in configuration order. Contract addresses and keys are
// not validated here, a broken entry only disables its network at setup.
func (c *NetworksConfig) Resolve(getenv func(string) string) (specs []NetworkSpec, assets []types.Asset, err error) {
	if len(c.Assets) == 0 {
		err = multierr.Append(err, errors.New("no assets configured"))
	}

	seenAssets := make(map[types.Asset]struct{}, len(c.Assets))
	for _, symbol := range c.Assets {
		asset, parseErr := types.ParseAsset(symbol)
		if parseErr != nil {
			err = multierr.Append(err, parseErr)
			continue
		} else if _, ok := seenAssets[asset]; ok {
			err = multierr.Append(err, errors.Errorf("duplicate asset %s", asset))
			continue
		}

		seenAssets[asset] = struct{}{}
		assets = append(assets, asset)
	}

	if len(c.Networks) == 0 {
		err = multierr.Append(err, errors.New("no networks configured"))
	}

	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		network, parseErr := types.ParseNetwork(name)
		if parseErr != nil {
			err = multierr.Append(err, parseErr)
			continue
		}

		netCfg := c.Networks[name]
		spec := NetworkSpec{
			Name:     network,
			Endpoint: netCfg.RPC,
			Contract: netCfg.Contract,
			ChainID:  netCfg.ChainID,
		}

		if len(spec.Endpoint) == 0 && len(netCfg.RPCEnv) > 0 {
			spec.Endpoint = getenv(netCfg.RPCEnv)
		}

		if len(netCfg.PrivateKeyEnv) > 0 {
			spec.PrivateKey = getenv(netCfg.PrivateKeyEnv)
		}

		specs = append(specs, spec)
	}

	if err != nil {
		return nil, nil, err
	}

	return specs, assets, nil
}
