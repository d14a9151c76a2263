package oracle

import (
	"fmt"
	"strings"
	"time"

	"github.com/InjectiveLabs/metrics"
	log "github.com/InjectiveLabs/suplog"

	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/types"
)

// Observer is the sink of structured oracle events. Implementations must be safe
// for concurrent use, since pipelines of one cycle report in parallel.
type Observer interface {
	Observe(ev Event)
}

// NopObserver discards all events.
func NopObserver() Observer {
	return nopObserver{}
}

type nopObserver struct{}

func (nopObserver) Observe(Event) {}

type EventKind string

const (
	EventNetworkReady  EventKind = "network_ready"
	EventSetupMissing  EventKind = "setup_missing"
	EventCycleStarted  EventKind = "cycle_started"
	EventCycleSkipped  EventKind = "cycle_skipped"
	EventCycleFinished EventKind = "cycle_finished"
	EventPriceFetched  EventKind = "price_fetched"
	EventTxSubmitted   EventKind = "tx_submitted"
	EventOutcome       EventKind = "outcome"
)

// Event is a single structured observation. Only the fields relevant to Kind are set.
type Event struct {
	Kind    EventKind
	CycleID string
	Network types.Network
	Asset   types.Asset

	// Endpoint is the redacted RPC endpoint of a network.
	Endpoint string
	Contract string
	Signer   string
	ChainID  string

	Quote   *types.PriceQuote
	TxHash  string
	Outcome *types.UpdateOutcome
	Summary *CycleSummary

	Err      error
	Duration time.Duration
}

// CycleSummary aggregates the outcomes of one cycle.
type CycleSummary struct {
	Pairs    int
	Statuses map[types.Status]int
}

func newCycleSummary(outcomes []types.UpdateOutcome) *CycleSummary {
	summary := &CycleSummary{
		Pairs:    len(outcomes),
		Statuses: make(map[types.Status]int),
	}

	for _, o := range outcomes {
		summary.Statuses[o.Status]++
	}

	return summary
}

func (s *CycleSummary) String() string {
	if s == nil {
		return ""
	}

	parts := make([]string, 0, 4)
	for _, status := range []types.Status{
		types.StatusSucceeded,
		types.StatusFetchFailed,
		types.StatusSubmissionFailed,
		types.StatusSetupMissing,
	} {
		if n := s.Statuses[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", status, n))
		}
	}

	return strings.Join(parts, " ")
}

type logObserver struct {
	logger  log.Logger
	svcTags metrics.Tags
}

// NewLogObserver returns an Observer that writes events to logger and reports
// outcome counters to statsd.
func NewLogObserver(logger log.Logger) Observer {
	return &logObserver{
		logger: logger,
		svcTags: metrics.Tags{
			"svc": "superchain_oracle",
		},
	}
}

func (o *logObserver) Observe(ev Event) {
	fields := log.Fields{
		"event": string(ev.Kind),
	}
	if ev.CycleID != "" {
		fields["cycle_id"] = ev.CycleID
	}
	if ev.Network != "" {
		fields["network"] = ev.Network.String()
	}
	if ev.Asset != "" {
		fields["asset"] = ev.Asset.String()
	}

	logger := o.logger.WithFields(fields)

	switch ev.Kind {
	case EventNetworkReady:
		logger.WithFields(log.Fields{
			"endpoint": ev.Endpoint,
			"contract": ev.Contract,
			"signer":   ev.Signer,
			"chain_id": ev.ChainID,
		}).Infoln("network binding ready")

	case EventSetupMissing:
		metrics.CustomReport(func(s metrics.Statter, tagSpec []string) {
			s.Count("superchain_oracle.setup_missing.count", 1, tagSpec, 1)
		}, o.svcTags)
		logger.WithError(ev.Err).WithField("endpoint", ev.Endpoint).Errorln("failed to set up network, it is excluded from updates")

	case EventCycleStarted:
		logger.WithField("pairs", pairsOf(ev.Summary)).Infoln("running price updates")

	case EventCycleSkipped:
		metrics.CustomReport(func(s metrics.Statter, tagSpec []string) {
			s.Count("superchain_oracle.cycle_skipped.count", 1, tagSpec, 1)
		}, o.svcTags)
		logger.Warningln("previous cycle is still running, skipping this tick")

	case EventCycleFinished:
		metrics.Timer("superchain_oracle.cycle.duration", ev.Duration, o.svcTags)
		logger.WithFields(log.Fields{
			"duration": ev.Duration.String(),
			"pairs":    pairsOf(ev.Summary),
		}).Infoln("cycle done:", ev.Summary.String())

	case EventPriceFetched:
		if ev.Quote != nil {
			logger.WithFields(log.Fields{
				"price":       ev.Quote.RawPrice.String(),
				"fixed_point": ev.Quote.FixedPointPrice.String(),
				"source":      ev.Quote.Source,
			}).Infoln("fetched price")
		}

	case EventTxSubmitted:
		logger.WithField("hash", ev.TxHash).Infoln("transaction sent")

	case EventOutcome:
		o.observeOutcome(logger, ev.Outcome)

	default:
		logger.Debugln("unknown event")
	}
}

func (o *logObserver) observeOutcome(logger log.Logger, outcome *types.UpdateOutcome) {
	if outcome == nil {
		return
	}

	metrics.CustomReport(func(s metrics.Statter, tagSpec []string) {
		s.Count(fmt.Sprintf("superchain_oracle.outcome.%s.count", outcome.Status), 1, tagSpec, 1)
	}, o.svcTags)

	logger = logger.WithFields(log.Fields{
		"status":   outcome.Status.String(),
		"duration": outcome.Duration.String(),
	})
	if outcome.Price.Valid {
		logger = logger.WithField("price", outcome.Price.String)
	}
	if outcome.TxHash.Valid {
		logger = logger.WithField("hash", outcome.TxHash.String)
	}
	if outcome.Block.Valid {
		logger = logger.WithField("block", outcome.Block.Int64)
	}

	if outcome.Succeeded() {
		logger.Infoln("price updated")
		return
	}

	logger.Errorln("price update failed:", outcome.Detail)
}

func pairsOf(summary *CycleSummary) int {
	if summary == nil {
		return 0
	}

	return summary.Pairs
}
