package oracle

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Locked serialises access to an engine that is not reentrant.
type Locked struct {
	mu sync.Mutex
	o  Oracle
}

func NewLocked(o Oracle) *Locked { return &Locked{o: o} }

func (l *Locked) Query(ctx context.Context, spec Spec) (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.o.Query(ctx, spec)
}

// Cached memoises successful queries. Concurrent identical queries reach the underlying
// oracle once. The composition hint is not part of the key.
type Cached struct {
	o     Oracle
	limit int

	mu    sync.RWMutex
	memo  map[string]State
	group singleflight.Group
}

// NewCached wraps o; when the memo reaches limit entries it is cleared. limit <= 0 means
// unbounded.
func NewCached(o Oracle, limit int) *Cached {
	return &Cached{o: o, limit: limit, memo: make(map[string]State)}
}

func cacheKey(s Spec) string {
	if s.ByEnthalpy {
		return fmt.Sprintf("ph:%x:%x", math.Float64bits(s.Pressure), math.Float64bits(s.Enthalpy))
	}
	return fmt.Sprintf("pt:%x:%x", math.Float64bits(s.Pressure), math.Float64bits(s.Temperature))
}

func (c *Cached) Query(ctx context.Context, spec Spec) (State, error) {
	key := cacheKey(spec)
	c.mu.RLock()
	st, ok := c.memo[key]
	c.mu.RUnlock()
	if ok {
		return st.Clone(), nil
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		st, ok := c.memo[key]
		c.mu.RUnlock()
		if ok {
			return st, nil
		}
		st, err := c.o.Query(ctx, spec)
		if err != nil {
			return State{}, err
		}
		c.mu.Lock()
		if c.limit > 0 && len(c.memo) >= c.limit {
			c.memo = make(map[string]State)
		}
		c.memo[key] = st
		c.mu.Unlock()
		return st, nil
	})
	if err != nil {
		return State{}, err
	}
	return v.(State).Clone(), nil
}

func (c *Cached) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memo)
}

// Faulty fails every query selected by Fail (all queries when Fail is nil) with Kind.
type Faulty struct {
	O    Oracle
	Kind Kind
	Fail func(Spec) bool
}

func (f *Faulty) Query(ctx context.Context, spec Spec) (State, error) {
	if f.Fail == nil || f.Fail(spec) {
		return State{}, Errorf(f.Kind, "faulty", spec, "injected failure")
	}
	if f.O == nil {
		return State{}, Errorf(NumericalFailure, "faulty", spec, "no oracle behind fault injector")
	}
	return f.O.Query(ctx, spec)
}

// Counting counts queries passed to O.
type Counting struct {
	O Oracle
	n atomic.Int64
}

func (c *Counting) Query(ctx context.Context, spec Spec) (State, error) {
	c.n.Add(1)
	return c.O.Query(ctx, spec)
}

func (c *Counting) Count() int64 { return c.n.Load() }
