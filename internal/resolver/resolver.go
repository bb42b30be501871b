// Package resolver resolves the addresses of the transfer endpoint,
// falling back to a static server list when the network lookup fails.
// It is injected into the pieces that need it rather than read from
// process-global state.
package resolver

import (
	"context"
	"net"
	"strings"

	"github.com/chunkwire/chunkwire/internal/logctx"
)

// LookupFunc resolves host to its addresses. The default uses
// net.DefaultResolver; tests substitute their own.
type LookupFunc func(ctx context.Context, host string) ([]net.IP, error)

// Resolver produces the comma-separated server list for one endpoint
// host.
type Resolver struct {
	host     string
	fallback []string
	lookup   LookupFunc
}

// New creates a resolver for host. fallback is returned whenever the
// live lookup yields nothing. lookup may be nil.
func New(host string, fallback []string, lookup LookupFunc) *Resolver {
	if lookup == nil {
		lookup = func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip", host)
		}
	}

	return &Resolver{host: host, fallback: fallback, lookup: lookup}
}

// Servers returns the current server list. When fromNetwork is false,
// or the lookup fails or returns no addresses, the static fallback
// list is used instead.
func (r *Resolver) Servers(ctx context.Context, fromNetwork bool) string {
	logger := logctx.LoggerFromContext(ctx)

	if fromNetwork {
		addrs, err := r.lookup(ctx, r.host)
		if err != nil {
			logger.Warn("endpoint lookup failed", "host", r.host, "err", err)
		}

		if len(addrs) > 0 {
			list := make([]string, 0, len(addrs))
			for _, a := range addrs {
				list = append(list, a.String())
			}

			servers := strings.Join(list, ",")
			logger.Info("using resolved endpoint servers", "host", r.host, "servers", servers)

			return servers
		}
	}

	servers := strings.Join(r.fallback, ",")
	logger.Info("using fallback endpoint servers", "host", r.host, "servers", servers)

	return servers
}
