package health

import (
	"context"
	"net/http"
	"time"

	"github.com/InjectiveLabs/metrics"
	log "github.com/InjectiveLabs/suplog"
	"github.com/rs/cors"
	goahttp "goa.design/goa/v3/http"
	"gopkg.in/guregu/null.v4"
)

// Snapshot is the oracle state exposed through the health endpoint.
type Snapshot struct {
	Networks           int
	Excluded           int
	LastCycleStartedAt time.Time
}

type SnapshotFunc func() Snapshot

type HealthStatus struct {
	Networks           int       `json:"networks"`
	Excluded           int       `json:"excluded"`
	LastCycleStartedAt null.Time `json:"lastCycleStartedAt"`
}

type HealthStatusResponse struct {
	// S is one of "ok", "error", "no_data".
	S      string        `json:"s"`
	Errmsg null.String   `json:"errmsg"`
	Data   *HealthStatus `json:"data"`
	Status string        `json:"status"`
}

type Service struct {
	snapshotFn SnapshotFunc
	staleAfter time.Duration

	logger  log.Logger
	svcTags metrics.Tags
}

// NewHealthService reports an error once no cycle started within staleAfter.
// Zero staleAfter disables the check.
func NewHealthService(logger log.Logger, svcTags metrics.Tags, snapshotFn SnapshotFunc, staleAfter time.Duration) *Service {
	return &Service{
		snapshotFn: snapshotFn,
		staleAfter: staleAfter,
		logger:     logger,
		svcTags:    svcTags,
	}
}

// GetStatus reports usable and excluded networks and the latest cycle start.
func (s *Service) GetStatus(_ context.Context) (res *HealthStatusResponse, err error) {
	defer metrics.ReportFuncCallAndTimingWithErr(s.svcTags)(&err)

	snapshot := s.snapshotFn()

	res = &HealthStatusResponse{
		Data: &HealthStatus{
			Networks: snapshot.Networks,
			Excluded: snapshot.Excluded,
		},
		S:      "ok",
		Status: "ok",
	}

	switch {
	case snapshot.LastCycleStartedAt.IsZero():
		res.S = "no_data"
		res.Status = "no_data"
	case s.staleAfter > 0 && time.Since(snapshot.LastCycleStartedAt) > s.staleAfter:
		res.Data.LastCycleStartedAt = null.TimeFrom(snapshot.LastCycleStartedAt.UTC())
		res.S = "error"
		res.Status = "error"
		res.Errmsg = null.StringFrom("no update cycle started since " + snapshot.LastCycleStartedAt.UTC().Format(time.RFC3339))
	default:
		res.Data.LastCycleStartedAt = null.TimeFrom(snapshot.LastCycleStartedAt.UTC())
	}

	return res, nil
}

// Handler serves GET /health with permissive CORS.
func (s *Service) Handler() http.Handler {
	mux := goahttp.NewMuxer()
	mux.Handle(http.MethodGet, "/health", s.handleStatus)
	mux.Handle(http.MethodHead, "/health", s.handleStatus)

	handlerWithCors := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedHeaders:     []string{"*"},
		AllowCredentials:   false,
		OptionsPassthrough: false,
	})

	return handlerWithCors.Handler(mux)
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res, err := s.GetStatus(ctx)
	if err != nil {
		s.logger.WithError(err).Warningln("failed to get health status")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	// sets the negotiated Content-Type, must precede WriteHeader
	enc := goahttp.ResponseEncoder(ctx, w)
	if res.S == "error" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := enc.Encode(res); err != nil {
		s.logger.WithError(err).Debugln("failed to write health response")
	}
}
