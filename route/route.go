// Package route defines the minimal shape a routing-tree node must have for
// lookaside.LookasideRoute to wrap it as a child. The tree itself — how
// nodes are composed, how a concrete pool or fan-out route selects among
// children — is the caller's concern; this package only names the seam.
package route

import "context"

// Route is a single node of a request-routing tree. Req and Rep are the
// request and reply types this node operates on.
type Route[Req, Rep any] interface {
	// RouteName returns a diagnostic label for this node.
	RouteName() string

	// Route dispatches req, returning the reply this node (or something
	// downstream of it) produced.
	Route(ctx context.Context, req Req) (Rep, error)

	// Traverse forwards a diagnostic Visitor through this node's children.
	// A leaf node's Traverse is a no-op.
	Traverse(req Req, v Visitor[Req])
}

// Visitor observes a routing-tree walk for diagnostics. It is invoked once
// per node visited, with that node's name.
type Visitor[Req any] interface {
	Visit(name string, req Req)
}

// VisitorFunc adapts a plain function to Visitor.
type VisitorFunc[Req any] func(name string, req Req)

func (f VisitorFunc[Req]) Visit(name string, req Req) { f(name, req) }
