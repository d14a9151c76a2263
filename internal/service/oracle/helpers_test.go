package oracle

import (
	"context"
	"crypto/ecdsa"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/types"
)

var testContract = common.HexToAddress("0x9a6C16DbB82a5158Db462b2F48e887B8ae1Dfc07")

type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (o *recordingObserver) Observe(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.events = append(o.events, ev)
}

func (o *recordingObserver) Events(kind EventKind) []Event {
	o.mu.Lock()
	defer o.mu.Unlock()

	var events []Event
	for _, ev := range o.events {
		if ev.Kind == kind {
			events = append(events, ev)
		}
	}

	return events
}

func (o *recordingObserver) Outcomes() []types.UpdateOutcome {
	var outcomes []types.UpdateOutcome
	for _, ev := range o.Events(EventOutcome) {
		outcomes = append(outcomes, *ev.Outcome)
	}

	return outcomes
}

// outcomeIndex keys outcomes by "network/asset".
func outcomeIndex(outcomes []types.UpdateOutcome) map[string]types.UpdateOutcome {
	idx := make(map[string]types.UpdateOutcome, len(outcomes))
	for _, o := range outcomes {
		idx[o.Network.String()+"/"+o.Asset.String()] = o
	}

	return idx
}

type executorFunc func(ctx context.Context, binding *NetworkBinding, asset types.Asset) types.UpdateOutcome

func (f executorFunc) Execute(ctx context.Context, binding *NetworkBinding, asset types.Asset) types.UpdateOutcome {
	return f(ctx, binding, asset)
}

func succeed(ctx context.Context, binding *NetworkBinding, asset types.Asset) types.UpdateOutcome {
	return types.UpdateOutcome{
		Network: binding.Name,
		Asset:   asset,
		Status:  types.StatusSucceeded,
		CycleID: cycleIDFrom(ctx),
	}
}

// staticRegistry builds a registry of bindings without any connection behind them.
func staticRegistry(networks ...types.Network) *Registry {
	r := &Registry{
		bindings: make(map[types.Network]*NetworkBinding),
	}

	for _, network := range networks {
		r.order = append(r.order, network)
		r.bindings[network] = &NetworkBinding{
			Name: network,
		}
	}

	return r
}

func newSigningKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return key, hexutil.Encode(crypto.FromECDSA(key))
}

func assets(symbols ...string) []types.Asset {
	out := make([]types.Asset, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, types.Asset(s))
	}

	return out
}
