package evm

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"time"

	log "github.com/InjectiveLabs/suplog"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"

	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/types"
)

// Client is the connection handle of one network. *ethclient.Client satisfies it.
type Client interface {
	bind.ContractBackend

	ChainID(ctx context.Context) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	Close()
}

var _ Client = (*ethclient.Client)(nil)

// Dial connects to an RPC endpoint (http, ws or ipc).
func Dial(ctx context.Context, endpoint string) (Client, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	return client, nil
}

type Options struct {
	// GasLimit of update transactions, 0 means estimate.
	GasLimit uint64

	ReceiptPollMin time.Duration
	ReceiptPollMax time.Duration
}

func checkOptions(opts Options) Options {
	if opts.ReceiptPollMin <= 0 {
		opts.ReceiptPollMin = 500 * time.Millisecond
	}

	if opts.ReceiptPollMax < opts.ReceiptPollMin {
		opts.ReceiptPollMax = 10 * opts.ReceiptPollMin
	}

	return opts
}

var _ types.PriceContract = &PriceOracle{}

// PriceOracle is a contract client bound to one deployed oracle and one signing key.
type PriceOracle struct {
	client   Client
	contract *bind.BoundContract
	auth     *bind.TransactOpts
	opts     Options

	// txMu serializes nonce selection and broadcast for this signer.
	txMu sync.Mutex

	logger log.Logger
}

// NewPriceOracle binds the oracle at address. It fails when there is no code
// deployed at the address or the key cannot be used for signing.
func NewPriceOracle(
	ctx context.Context,
	client Client,
	address common.Address,
	key *ecdsa.PrivateKey,
	chainID *big.Int,
	opts Options,
) (*PriceOracle, error) {
	parsed, err := ParsePriceOracleABI()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse oracle ABI")
	}

	code, err := client.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get code at %s", address.Hex())
	} else if len(code) == 0 {
		return nil, errors.Wrapf(bind.ErrNoCode, "no contract deployed at %s", address.Hex())
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init transactor")
	}

	oracle := &PriceOracle{
		client:   client,
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		auth:     auth,
		opts:     checkOptions(opts),

		logger: log.WithFields(log.Fields{
			"svc":      "oracle",
			"contract": address.Hex(),
			"chain_id": chainID.String(),
		}),
	}

	return oracle, nil
}

// From returns the address of the signing key.
func (o *PriceOracle) From() common.Address {
	return o.auth.From
}

// UpdatePrice signs and broadcasts updatePrice(asset, price, source). It returns
// as soon as the node accepted the transaction.
func (o *PriceOracle) UpdatePrice(ctx context.Context, asset string, price *big.Int, source string) (*gethtypes.Transaction, error) {
	o.txMu.Lock()
	defer o.txMu.Unlock()

	// the deadline may pass while queued behind another update of the same signer
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(types.ErrTxNotSent, "updatePrice of %s: %v", asset, err)
	}

	opts := *o.auth
	opts.Context = ctx
	opts.GasLimit = o.opts.GasLimit

	tx, err := o.contract.Transact(&opts, methodUpdatePrice, asset, price, source)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send updatePrice transaction")
	}

	o.logger.WithFields(log.Fields{
		"asset": asset,
		"hash":  tx.Hash().Hex(),
		"nonce": tx.Nonce(),
	}).Debugln("sent updatePrice")

	return tx, nil
}

// WaitConfirmed polls for the receipt of tx until it is mined or ctx ends.
// Receipt lookups failing for other reasons than "not found" are retried as well,
// since the transaction may be included regardless.
func (o *PriceOracle) WaitConfirmed(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error) {
	b := &backoff.Backoff{
		Min:    o.opts.ReceiptPollMin,
		Max:    o.opts.ReceiptPollMax,
		Factor: 1.5,
	}

	for {
		receipt, err := o.client.TransactionReceipt(ctx, tx.Hash())
		if err == nil && receipt != nil {
			return receipt, nil
		} else if err != nil && !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil {
			o.logger.WithError(err).WithField("hash", tx.Hash().Hex()).Warningln("failed to get receipt, will retry")
		}

		t := time.NewTimer(b.Duration())
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Wrapf(ctx.Err(), "stopped waiting for %s", tx.Hash().Hex())
		case <-t.C:
		}
	}
}

// GetPrice reads the stored price of asset.
func (o *PriceOracle) GetPrice(ctx context.Context, asset string) (*types.OnchainPrice, error) {
	var out []interface{}
	if err := o.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodGetPrice, asset); err != nil {
		return nil, errors.Wrapf(err, "failed to call getPrice(%s)", asset)
	}

	if len(out) != 3 {
		return nil, errors.Errorf("getPrice(%s) returned %d values, expected 3", asset, len(out))
	}

	price, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("unexpected price type %T", out[0])
	}

	ts, ok := out[1].(*big.Int)
	if !ok {
		return nil, errors.Errorf("unexpected timestamp type %T", out[1])
	}

	source, ok := out[2].(string)
	if !ok {
		return nil, errors.Errorf("unexpected source type %T", out[2])
	}

	return &types.OnchainPrice{
		Price:     price,
		Timestamp: time.Unix(ts.Int64(), 0).UTC(),
		Source:    source,
	}, nil
}
