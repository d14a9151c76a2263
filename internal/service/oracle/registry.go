package oracle

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/evm"
	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/types"
)

const defaultSetupTimeout = 30 * time.Second

// Dialer opens the connection handle of one network.
type Dialer func(ctx context.Context, endpoint string) (evm.Client, error)

// NetworkBinding is everything needed to update the oracle on one network.
// It is immutable after BuildRegistry returns.
type NetworkBinding struct {
	Name            types.Network
	Endpoint        string
	ContractAddress common.Address
	ChainID         uint64
	Signer          common.Address

	Contract types.PriceContract

	client evm.Client
}

// Registry holds the usable network bindings. It is read-only once built.
type Registry struct {
	order    []types.Network
	bindings map[types.Network]*NetworkBinding
	missing  []types.Network
}

type RegistryOptions struct {
	Dialer   Dialer
	Observer Observer

	// SetupTimeout bounds dialing and contract checks of a single network.
	SetupTimeout time.Duration

	Oracle evm.Options
}

// BuildRegistry sets up a binding for every spec in the given order. A network that
// cannot be set up is reported to the observer as SetupMissing and left out; the
// call fails only when no network at all is usable.
func BuildRegistry(ctx context.Context, specs []NetworkSpec, sharedKey string, opts RegistryOptions) (*Registry, error) {
	if opts.Dialer == nil {
		opts.Dialer = evm.Dial
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver()
	}
	if opts.SetupTimeout <= 0 {
		opts.SetupTimeout = defaultSetupTimeout
	}

	r := &Registry{
		bindings: make(map[types.Network]*NetworkBinding, len(specs)),
	}

	for _, spec := range specs {
		if _, ok := r.bindings[spec.Name]; ok {
			continue
		}

		binding, err := setupBinding(ctx, spec, sharedKey, opts)
		if err != nil {
			r.missing = append(r.missing, spec.Name)

			opts.Observer.Observe(Event{
				Kind:     EventSetupMissing,
				Network:  spec.Name,
				Endpoint: redactEndpoint(spec.Endpoint),
				Contract: spec.Contract,
				Err:      err,
				Outcome: &types.UpdateOutcome{
					Network: spec.Name,
					Status:  types.StatusSetupMissing,
					Detail:  err.Error(),
				},
			})

			continue
		}

		r.order = append(r.order, spec.Name)
		r.bindings[spec.Name] = binding

		opts.Observer.Observe(Event{
			Kind:     EventNetworkReady,
			Network:  binding.Name,
			Endpoint: redactEndpoint(binding.Endpoint),
			Contract: binding.ContractAddress.Hex(),
			Signer:   binding.Signer.Hex(),
			ChainID:  fmtChainID(binding.ChainID),
		})
	}

	if len(r.order) == 0 {
		return nil, errors.Wrapf(types.ErrNoUsableNetworks, "%d networks configured", len(specs))
	}

	return r, nil
}

func setupBinding(ctx context.Context, spec NetworkSpec, sharedKey string, opts RegistryOptions) (*NetworkBinding, error) {
	if len(spec.Endpoint) == 0 {
		return nil, errors.New("no RPC endpoint configured")
	}

	if !common.IsHexAddress(spec.Contract) {
		return nil, errors.Errorf("malformed contract address %q", spec.Contract)
	}
	address := common.HexToAddress(spec.Contract)

	keyHex := spec.PrivateKey
	if len(keyHex) == 0 {
		keyHex = sharedKey
	}

	key, err := parsePrivateKey(keyHex)
	if err != nil {
		return nil, err
	}

	setupCtx, cancelFn := context.WithTimeout(ctx, opts.SetupTimeout)
	defer cancelFn()

	client, err := opts.Dialer(setupCtx, spec.Endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial RPC endpoint")
	}

	binding, err := bindContract(setupCtx, client, spec, address, key, opts.Oracle)
	if err != nil {
		client.Close()
		return nil, err
	}

	return binding, nil
}

func bindContract(
	ctx context.Context,
	client evm.Client,
	spec NetworkSpec,
	address common.Address,
	key *ecdsa.PrivateKey,
	oracleOpts evm.Options,
) (*NetworkBinding, error) {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "endpoint unreachable, failed to get chain id")
	} else if spec.ChainID != 0 && chainID.Uint64() != spec.ChainID {
		return nil, errors.Errorf("chain id mismatch: endpoint reports %s, expected %d", chainID.String(), spec.ChainID)
	}

	priceOracle, err := evm.NewPriceOracle(ctx, client, address, key, chainID, oracleOpts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init contract client")
	}

	return &NetworkBinding{
		Name:            spec.Name,
		Endpoint:        spec.Endpoint,
		ContractAddress: address,
		ChainID:         chainID.Uint64(),
		Signer:          priceOracle.From(),
		Contract:        priceOracle,
		client:          client,
	}, nil
}

func parsePrivateKey(keyHex string) (*ecdsa.PrivateKey, error) {
	keyHex = strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")
	if len(keyHex) == 0 {
		return nil, errors.New("no signing key configured")
	}

	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		// the key itself must never end up in logs
		return nil, errors.New("signing key rejected: not a valid secp256k1 hex key")
	}

	return key, nil
}

// Networks lists usable networks in setup order.
func (r *Registry) Networks() []types.Network {
	networks := make([]types.Network, len(r.order))
	copy(networks, r.order)
	return networks
}

func (r *Registry) Get(network types.Network) (*NetworkBinding, bool) {
	binding, ok := r.bindings[network]
	return binding, ok
}

func (r *Registry) Len() int {
	return len(r.order)
}

// Missing lists networks that were configured but failed setup.
func (r *Registry) Missing() []types.Network {
	missing := make([]types.Network, len(r.missing))
	copy(missing, r.missing)
	return missing
}

// Close releases all connections. Bindings must not be used afterwards.
func (r *Registry) Close() {
	for _, network := range r.order {
		if client := r.bindings[network].client; client != nil {
			client.Close()
		}
	}
}
