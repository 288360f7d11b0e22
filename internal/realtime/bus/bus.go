package bus

import (
	"context"

	"github.com/localmind-ai/localmind-backend/internal/realtime"
)

// Bus carries realtime messages between server instances. A single-node
// deployment uses the in-memory bus; multi-node deployments use redis so an
// update made on one instance reaches connections held by another.
type Bus interface {
	Publish(ctx context.Context, msg realtime.Message) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error
	Close() error
}
