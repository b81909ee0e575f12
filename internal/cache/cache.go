// Package cache provides the short-TTL byte cache used in front of chain
// RPC queries.
package cache

import "context"

// Cache is a byte cache with an implementation-defined TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}
