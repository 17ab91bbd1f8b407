package state

import (
	"context"
	"fmt"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Options struct {
	Backend     string
	RedisAddr   string
	DatabaseURL string
}

// Open returns the Store for the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		r, err := OpenRedis(ctx, opts.RedisAddr)
		if err != nil {
			return nil, err
		}
		return r, nil
	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("state backend %q needs DATABASE_URL", opts.Backend)
		}
		p, err := OpenPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", opts.Backend)
	}
}
