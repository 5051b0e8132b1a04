package ratelimit

import "sync"

// Registry hands out one limiter per provider account so that every
// provider instance built for the same account shares a budget.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*RateLimiter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*RateLimiter)}
}

var global = NewRegistry()

// Global returns the process-wide registry.
func Global() *Registry {
	return global
}

// ForAccount returns the LIST limiter for provider/account, creating it on
// first use.
func (r *Registry) ForAccount(provider, account string) *RateLimiter {
	key := provider + "/" + account

	r.mu.Lock()
	defer r.mu.Unlock()

	if rl, ok := r.limiters[key]; ok {
		return rl
	}
	rl := NewListRateLimiter(provider)
	r.limiters[key] = rl
	return rl
}

// Len returns the number of limiters created so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
