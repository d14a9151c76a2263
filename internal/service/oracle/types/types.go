package types

//go:generate mockgen -source=types.go -destination=mocks/mock_types.go -package=mocks

import (
	"context"
	"math/big"
	"regexp"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/guregu/null.v4"
)

// PriceSource fetches a single USD quote for an asset from an external service.
type PriceSource interface {
	// Fetch performs exactly one request. Any failure is returned as *FetchError.
	Fetch(ctx context.Context, asset Asset) (*PriceQuote, error)
}

// PriceContract is the consumed surface of the on-chain price oracle of a single network.
type PriceContract interface {
	// UpdatePrice signs and sends updatePrice. An error wrapping ErrTxNotSent
	// means nothing reached the node.
	UpdatePrice(ctx context.Context, asset string, price *big.Int, source string) (*gethtypes.Transaction, error)
	WaitConfirmed(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error)
	GetPrice(ctx context.Context, asset string) (*OnchainPrice, error)
}

// Network identifies one target chain, e.g. "sepolia".
type Network string

func (n Network) String() string {
	return string(n)
}

var networkNameRx = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ParseNetwork validates a configured network name.
func ParseNetwork(name string) (Network, error) {
	if !networkNameRx.MatchString(name) {
		return "", errors.Errorf("invalid network name %q", name)
	}

	return Network(name), nil
}

// Asset is a price source asset identifier, e.g. "ethereum".
type Asset string

func (a Asset) String() string {
	return string(a)
}

var assetSymbolRx = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ParseAsset validates an asset symbol. Symbols are passed verbatim both to the
// price source and to the contract, so they must be lowercase identifiers.
func ParseAsset(symbol string) (Asset, error) {
	if !assetSymbolRx.MatchString(symbol) {
		return "", errors.Errorf("invalid asset symbol %q", symbol)
	}

	return Asset(symbol), nil
}

// PriceQuote is a single fetched price. It is never mutated after creation.
type PriceQuote struct {
	Asset Asset

	// RawPrice is the decimal USD price as reported by the source.
	RawPrice decimal.Decimal

	// FixedPointPrice is round(RawPrice * 10^8), the value sent on-chain.
	FixedPointPrice *big.Int

	// Source is the label stored alongside the price on-chain.
	Source string

	FetchedAt time.Time
}

// OnchainPrice is the result of a getPrice read.
type OnchainPrice struct {
	Price     *big.Int
	Timestamp time.Time
	Source    string
}

// Status of a single (network, asset) update.
type Status string

func (s Status) String() string {
	return string(s)
}

const (
	StatusSucceeded        Status = "succeeded"
	StatusFetchFailed      Status = "fetch_failed"
	StatusSubmissionFailed Status = "submission_failed"
	StatusSetupMissing     Status = "setup_missing"
)

// UpdateOutcome is produced once per (network, asset) per cycle.
type UpdateOutcome struct {
	Network Network
	Asset   Asset
	Status  Status
	Detail  string

	// Price is the fixed-point price that was (or was attempted to be) submitted.
	Price null.String

	// TxHash is set once a transaction was handed to the network.
	TxHash null.String

	// Block is set once a receipt was observed.
	Block null.Int

	CycleID  string
	Duration time.Duration
}

func (o UpdateOutcome) Succeeded() bool {
	return o.Status == StatusSucceeded
}
