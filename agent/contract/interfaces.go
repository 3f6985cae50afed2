package contract

import "context"

// Worker is a named capability provider. Constructed once at session start,
// stateless across queries except for the Tool Gateway calls it issues.
type Worker interface {
	Name() string
	Capabilities() []Capability
	Handle(ctx context.Context, req Request) Response
}

// Registry resolves a capability to the worker providing it. Read-only during
// query processing.
type Registry interface {
	Resolve(cap Capability) (Worker, error)
}

// ToolGateway mediates every data-affecting call a worker makes to the store.
// Op names and parameter schemas are fixed; see agent/gateway.
type ToolGateway interface {
	Call(ctx context.Context, op string, params map[string]any) (any, error)
}

// AuditSink records the append-only AgentMessage trail, keyed by session.
type AuditSink interface {
	Append(ctx context.Context, sessionID string, msg AgentMessage) error
	Trail(ctx context.Context, sessionID string) ([]AgentMessage, error)
}
