// Package kit holds the transport-agnostic endpoint plumbing shared by the
// chrdbg surfaces: the Endpoint function type, middleware composition, and
// request-scoped context accessors.
//
// An Endpoint is the unit every transport (HTTP handler, MCP tool) adapts
// to, so cross-cutting concerns compose once and apply everywhere:
//
//	ep := kit.Chain(logMW, captureMW)(rawEndpoint)
package kit

import "context"

// Endpoint is a single request/response interaction.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with additional behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first argument is outermost:
// Chain(a, b, c)(ep) runs a before b before c before ep.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
