package oracle

import (
	"context"
	"net/url"
	"strconv"
)

// redactEndpoint strips credentials, path and query from an RPC URL, since
// providers commonly embed API keys there.
func redactEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "<redacted>"
	}

	redacted := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		redacted += "/***"
	}

	return redacted
}

type cycleIDKey struct{}

func withCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, cycleID)
}

func cycleIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDKey{}).(string)
	return id
}

func fmtChainID(chainID uint64) string {
	return strconv.FormatUint(chainID, 10)
}
