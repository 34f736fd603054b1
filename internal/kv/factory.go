package kv

import (
	"context"
	"fmt"
)

// NewStore creates a key-value store for the given backend.
// Supported backends: "memory", "file", "redis".
func NewStore(ctx context.Context, backend, filePath, redisAddr string) (Store, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		if filePath == "" {
			return nil, fmt.Errorf("file backend requires a path")
		}
		return NewFileStore(filePath)
	case "redis":
		if redisAddr == "" {
			return nil, fmt.Errorf("redis backend requires an address")
		}
		return NewRedisStore(ctx, redisAddr)
	default:
		return nil, fmt.Errorf("unsupported kv backend: %s", backend)
	}
}
