package lock

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// New returns the locker for backend. client is only used by the redis backend.
func New(backend string, client redis.UniversalClient) (Locker, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryLocker(), nil
	case BackendRedis:
		if client == nil {
			return nil, fmt.Errorf("redis lock backend requires a redis client")
		}
		return NewRedisLocker(client), nil
	case BackendNone:
		return NewNoOpLocker(), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", backend)
	}
}
