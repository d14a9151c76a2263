package oracle

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/coingecko"
	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/evm"
	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/types"
	"github.com/superchain-oracle/superchain-oracle/internal/testutil"
)

type syncFixture struct {
	nodes    map[types.Network]*testutil.EthRPCServer
	gecko    *testutil.CoinGeckoServer
	registry *Registry
	observer *recordingObserver
	svc      Service
}

// newSyncFixture wires two fake networks and a fake CoinGecko into a real service.
func newSyncFixture(t *testing.T, prices map[string]string) *syncFixture {
	t.Helper()

	key, keyHex := newSigningKey(t)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	f := &syncFixture{
		nodes: map[types.Network]*testutil.EthRPCServer{
			"sepolia":         testutil.StartEthRPC(t, 11155111, testContract),
			"optimismSepolia": testutil.StartEthRPC(t, 11155420, testContract),
		},
		gecko:    testutil.StartCoinGecko(t, prices),
		observer: &recordingObserver{},
	}

	var specs []NetworkSpec
	for _, name := range []types.Network{"sepolia", "optimismSepolia"} {
		node := f.nodes[name]
		node.Authorize(signer)
		specs = append(specs, NetworkSpec{
			Name:     name,
			Endpoint: node.URL,
			Contract: testContract.Hex(),
		})
	}

	registry, err := BuildRegistry(context.Background(), specs, keyHex, RegistryOptions{
		Observer: f.observer,
		Oracle: evm.Options{
			ReceiptPollMin: 5 * time.Millisecond,
			ReceiptPollMax: 20 * time.Millisecond,
		},
	})
	require.NoError(t, err)
	t.Cleanup(registry.Close)
	f.registry = registry

	source := coingecko.NewPriceFeed(&coingecko.Config{
		BaseURL:         f.gecko.URL,
		RateLimitPerMin: -1,
	})

	svc, err := NewService(registry, NewExecutor(source, f.observer), f.observer, Config{
		Assets:          assets("ethereum", "bitcoin"),
		Interval:        time.Hour,
		PipelineTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	f.svc = svc

	return f
}

func TestCycleUpdatesAllNetworks(t *testing.T) {
	f := newSyncFixture(t, map[string]string{
		"ethereum": "2500.00",
		"bitcoin":  "50000.00",
	})

	require.NoError(t, f.svc.Start(context.Background()))
	defer f.svc.Close()

	// the first cycle has completed by the time Start returns
	outcomes := outcomeIndex(f.observer.Outcomes())
	require.Len(t, outcomes, 4)

	expected := map[string]string{
		"ethereum": "250000000000",
		"bitcoin":  "5000000000000",
	}

	for network, node := range f.nodes {
		binding, ok := f.registry.Get(network)
		require.True(t, ok)

		for asset, price := range expected {
			outcome := outcomes[network.String()+"/"+asset]
			assert.Equal(t, types.StatusSucceeded, outcome.Status, outcome.Detail)
			assert.Equal(t, price, outcome.Price.String)
			assert.True(t, outcome.TxHash.Valid)

			stored, ok := node.Price(asset)
			require.True(t, ok, "%s/%s", network, asset)
			assert.Equal(t, price, stored.Price.String())

			onchain, err := binding.Contract.GetPrice(context.Background(), asset)
			require.NoError(t, err)
			assert.Equal(t, price, onchain.Price.String())
			assert.Equal(t, coingecko.SourceLabel, onchain.Source)
		}
	}

	finished := f.observer.Events(EventCycleFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, 4, finished[0].Summary.Pairs)
	assert.Equal(t, 4, finished[0].Summary.Statuses[types.StatusSucceeded])
	assert.False(t, f.svc.LastCycleStartedAt().IsZero())
}

func TestCycleIsolatesFetchFailures(t *testing.T) {
	f := newSyncFixture(t, map[string]string{
		"ethereum": "2500.00",
	})
	f.gecko.SetBody("bitcoin", `{"bitcoin":{"usd":`)

	require.NoError(t, f.svc.Start(context.Background()))
	defer f.svc.Close()

	outcomes := outcomeIndex(f.observer.Outcomes())
	require.Len(t, outcomes, 4)

	for network, node := range f.nodes {
		eth := outcomes[network.String()+"/ethereum"]
		assert.Equal(t, types.StatusSucceeded, eth.Status, eth.Detail)

		btc := outcomes[network.String()+"/bitcoin"]
		assert.Equal(t, types.StatusFetchFailed, btc.Status)
		assert.Contains(t, btc.Detail, "fetch failed for bitcoin")
		assert.False(t, btc.TxHash.Valid)

		_, ok := node.Price("bitcoin")
		assert.False(t, ok)
	}
}

func TestCycleIsolatesSubmissionFailures(t *testing.T) {
	f := newSyncFixture(t, map[string]string{
		"ethereum": "2500.00",
		"bitcoin":  "50000.00",
	})
	f.nodes["optimismSepolia"].FailSends("insufficient funds for gas * price + value")

	require.NoError(t, f.svc.Start(context.Background()))
	defer f.svc.Close()

	outcomes := outcomeIndex(f.observer.Outcomes())
	require.Len(t, outcomes, 4)

	for _, asset := range []string{"ethereum", "bitcoin"} {
		assert.Equal(t, types.StatusSucceeded, outcomes["sepolia/"+asset].Status)

		failed := outcomes["optimismSepolia/"+asset]
		assert.Equal(t, types.StatusSubmissionFailed, failed.Status)
		assert.Contains(t, failed.Detail, string(types.StageRejected))
	}
}

func TestStartRunsOneCycleThenKeepsInterval(t *testing.T) {
	const interval = 100 * time.Millisecond

	var mu sync.Mutex
	var starts []time.Time

	executor := executorFunc(func(ctx context.Context, binding *NetworkBinding, asset types.Asset) types.UpdateOutcome {
		// slower than nothing, so spacing from completion would be visibly longer
		time.Sleep(40 * time.Millisecond)
		return succeed(ctx, binding, asset)
	})

	observer := &recordingObserver{}
	svc, err := NewService(staticRegistry("sepolia"), executor, observerFunc(func(ev Event) {
		if ev.Kind == EventCycleStarted {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
		}
		observer.Observe(ev)
	}), Config{
		Assets:   assets("ethereum"),
		Interval: interval,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Start(context.Background()))
	require.Len(t, observer.Events(EventCycleFinished), 1)
	require.Len(t, observer.Outcomes(), 1)

	require.Eventually(t, func() bool {
		return len(observer.Events(EventCycleFinished)) >= 4
	}, 2*time.Second, 5*time.Millisecond)

	svc.Close()
	require.NoError(t, svc.Wait())

	mu.Lock()
	defer mu.Unlock()

	for i := 1; i < 4; i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.InDelta(t, float64(interval), float64(gap), float64(30*time.Millisecond), "gap %d: %s", i, gap)
	}
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})

	executor := executorFunc(func(ctx context.Context, binding *NetworkBinding, asset types.Asset) types.UpdateOutcome {
		if calls.Add(1) > 1 {
			<-release
		}
		return succeed(ctx, binding, asset)
	})

	observer := &recordingObserver{}
	svc, err := NewService(staticRegistry("sepolia"), executor, observer, Config{
		Assets:          assets("ethereum"),
		Interval:        10 * time.Millisecond,
		PipelineTimeout: time.Minute,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))

	require.Eventually(t, func() bool {
		return len(observer.Events(EventCycleSkipped)) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	// the blocked second cycle is the only one in flight
	assert.Len(t, observer.Events(EventCycleStarted), 2)
	assert.Equal(t, int32(2), calls.Load())

	close(release)
	svc.Close()
	assert.NoError(t, svc.Wait())
}

func TestPipelineTimeoutIsPerPair(t *testing.T) {
	executor := executorFunc(func(ctx context.Context, binding *NetworkBinding, asset types.Asset) types.UpdateOutcome {
		if binding.Name == "sepolia" && asset == "bitcoin" {
			<-ctx.Done()
			return types.UpdateOutcome{
				Network: binding.Name,
				Asset:   asset,
				Status:  types.StatusSubmissionFailed,
				Detail:  types.NewSubmissionError(types.StageUnconfirmed, ctx.Err()).Error(),
			}
		}
		return succeed(ctx, binding, asset)
	})

	observer := &recordingObserver{}
	svc, err := NewService(staticRegistry("sepolia", "optimismSepolia"), executor, observer, Config{
		Assets:          assets("ethereum", "bitcoin"),
		Interval:        time.Hour,
		PipelineTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	outcomes := svc.(*oracleSvc).runCycle(context.Background())
	require.Len(t, outcomes, 4)

	assert.Equal(t, types.StatusSucceeded, outcomes[0].Status)
	assert.Equal(t, types.StatusSubmissionFailed, outcomes[1].Status)
	assert.Contains(t, outcomes[1].Detail, "confirmation not observed")
	assert.Equal(t, types.StatusSucceeded, outcomes[2].Status)
	assert.Equal(t, types.StatusSucceeded, outcomes[3].Status)

	assert.Equal(t, types.Network("sepolia"), outcomes[0].Network)
	assert.Equal(t, types.Asset("bitcoin"), outcomes[1].Asset)
	assert.Equal(t, types.Network("optimismSepolia"), outcomes[2].Network)

	for _, o := range outcomes {
		assert.Equal(t, outcomes[0].CycleID, o.CycleID)
	}
	assert.NotEmpty(t, outcomes[0].CycleID)
}

func TestPipelinePanicIsContained(t *testing.T) {
	executor := executorFunc(func(ctx context.Context, binding *NetworkBinding, asset types.Asset) types.UpdateOutcome {
		if asset == "bitcoin" {
			panic("nil binding")
		}
		return succeed(ctx, binding, asset)
	})

	observer := &recordingObserver{}
	svc, err := NewService(staticRegistry("sepolia"), executor, observer, Config{
		Assets:      assets("ethereum", "bitcoin"),
		MaxParallel: 1,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Close()

	outcomes := outcomeIndex(observer.Outcomes())
	require.Len(t, outcomes, 2)
	assert.Equal(t, types.StatusSucceeded, outcomes["sepolia/ethereum"].Status)
	assert.Equal(t, types.StatusSubmissionFailed, outcomes["sepolia/bitcoin"].Status)
	assert.Equal(t, "pipeline panicked: nil binding", outcomes["sepolia/bitcoin"].Detail)
	assert.NotEmpty(t, outcomes["sepolia/bitcoin"].CycleID)
}

func TestObserverPanicIsContained(t *testing.T) {
	recorder := &recordingObserver{}
	observer := observerFunc(func(ev Event) {
		if ev.Kind == EventOutcome && ev.Asset == "bitcoin" {
			panic("sink closed")
		}
		recorder.Observe(ev)
	})

	svc, err := NewService(staticRegistry("sepolia"), executorFunc(succeed), observer, Config{
		Assets:   assets("ethereum", "bitcoin"),
		Interval: time.Hour,
	})
	require.NoError(t, err)

	outcomes := svc.(*oracleSvc).runCycle(context.Background())
	require.Len(t, outcomes, 2)
	assert.Equal(t, types.StatusSucceeded, outcomes[1].Status)

	assert.Len(t, recorder.Outcomes(), 1)
	require.Len(t, recorder.Events(EventCycleFinished), 1)
	assert.Equal(t, 2, recorder.Events(EventCycleFinished)[0].Summary.Statuses[types.StatusSucceeded])
}

func TestTickAfterCancelStartsNoCycle(t *testing.T) {
	var calls atomic.Int32
	executor := executorFunc(func(ctx context.Context, binding *NetworkBinding, asset types.Asset) types.UpdateOutcome {
		calls.Add(1)
		return succeed(ctx, binding, asset)
	})

	observer := &recordingObserver{}
	svc, err := NewService(staticRegistry("sepolia"), executor, observer, Config{
		Assets:   assets("ethereum"),
		Interval: time.Hour,
	})
	require.NoError(t, err)

	ctx, cancelFn := context.WithCancel(context.Background())
	cancelFn()

	s := svc.(*oracleSvc)
	s.tick(ctx)
	s.cycles.Wait()

	assert.Zero(t, calls.Load())
	assert.Empty(t, observer.Events(EventCycleStarted))
	assert.Empty(t, observer.Events(EventCycleSkipped))
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(nil, executorFunc(succeed), nil, Config{Assets: assets("ethereum")})
	assert.ErrorIs(t, err, types.ErrNoUsableNetworks)

	_, err = NewService(staticRegistry("sepolia"), nil, nil, Config{Assets: assets("ethereum")})
	assert.Error(t, err)

	_, err = NewService(staticRegistry("sepolia"), executorFunc(succeed), nil, Config{})
	assert.Error(t, err)
}

func TestStartTwiceFails(t *testing.T) {
	svc, err := NewService(staticRegistry("sepolia"), executorFunc(succeed), nil, Config{
		Assets:   assets("ethereum"),
		Interval: time.Hour,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Start(context.Background()))
	assert.Error(t, svc.Start(context.Background()))

	svc.Close()
	assert.NoError(t, svc.Wait())
}

type observerFunc func(ev Event)

func (f observerFunc) Observe(ev Event) {
	f(ev)
}
