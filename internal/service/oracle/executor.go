package oracle

import (
	"context"
	"time"

	"github.com/InjectiveLabs/metrics"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"gopkg.in/guregu/null.v4"

	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/types"
)

// Executor runs a single (network, asset) update pipeline:
// fetch, submit, await confirmation.
type Executor interface {
	// Execute never returns an error, every failure is folded into the outcome.
	Execute(ctx context.Context, binding *NetworkBinding, asset types.Asset) types.UpdateOutcome
}

type executor struct {
	source   types.PriceSource
	observer Observer
	svcTags  metrics.Tags
}

func NewExecutor(source types.PriceSource, observer Observer) Executor {
	if observer == nil {
		observer = NopObserver()
	}

	return &executor{
		source:   source,
		observer: observer,
		svcTags: metrics.Tags{
			"svc": "superchain_oracle",
		},
	}
}

func (e *executor) Execute(ctx context.Context, binding *NetworkBinding, asset types.Asset) (outcome types.UpdateOutcome) {
	startedAt := time.Now()

	outcome = types.UpdateOutcome{
		Network: binding.Name,
		Asset:   asset,
		CycleID: cycleIDFrom(ctx),
	}
	defer func() {
		outcome.Duration = time.Since(startedAt)
	}()

	quote, err := e.source.Fetch(ctx, asset)
	if err != nil {
		outcome.Status = types.StatusFetchFailed
		outcome.Detail = fetchDetail(asset, err)
		return outcome
	}

	outcome.Price = null.StringFrom(quote.FixedPointPrice.String())

	e.observer.Observe(Event{
		Kind:    EventPriceFetched,
		CycleID: outcome.CycleID,
		Network: binding.Name,
		Asset:   asset,
		Quote:   quote,
	})

	receipt, tx, err := e.submit(ctx, binding, quote)
	if tx != nil {
		outcome.TxHash = null.StringFrom(tx.Hash().Hex())
	}
	if receipt != nil && receipt.BlockNumber != nil {
		outcome.Block = null.IntFrom(receipt.BlockNumber.Int64())
	}

	if err != nil {
		outcome.Status = types.StatusSubmissionFailed
		outcome.Detail = err.Error()
		return outcome
	}

	outcome.Status = types.StatusSucceeded
	outcome.Detail = "confirmed"
	return outcome
}

// submit sends the update and waits for its receipt. Any error is a *types.SubmissionError.
func (e *executor) submit(
	ctx context.Context,
	binding *NetworkBinding,
	quote *types.PriceQuote,
) (receipt *gethtypes.Receipt, tx *gethtypes.Transaction, err error) {
	defer metrics.ReportFuncCallAndTimingWithErr(e.svcTags)(&err)

	tx, err = binding.Contract.UpdatePrice(ctx, quote.Asset.String(), quote.FixedPointPrice, quote.Source)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, types.ErrTxNotSent) {
			// the send may have reached the node before the context ended
			return nil, nil, types.NewSubmissionError(types.StageUnconfirmed, err)
		}

		return nil, nil, types.NewSubmissionError(types.StageRejected, err)
	}

	e.observer.Observe(Event{
		Kind:    EventTxSubmitted,
		CycleID: cycleIDFrom(ctx),
		Network: binding.Name,
		Asset:   quote.Asset,
		TxHash:  tx.Hash().Hex(),
	})

	receipt, err = binding.Contract.WaitConfirmed(ctx, tx)
	if err != nil {
		return nil, tx, types.NewSubmissionError(types.StageUnconfirmed, err)
	}

	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		err = errors.Errorf("tx %s failed in block %s", tx.Hash().Hex(), receipt.BlockNumber)
		return receipt, tx, types.NewSubmissionError(types.StageReverted, err)
	}

	return receipt, tx, nil
}

func fetchDetail(asset types.Asset, err error) string {
	var fetchErr *types.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Error()
	}

	return types.NewFetchError(asset, err).Error()
}
