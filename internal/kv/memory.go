package kv

import (
	"context"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"
)

type memoryValue struct {
	data      string
	expiresAt time.Time
}

func (v memoryValue) expired(now time.Time) bool {
	return !v.expiresAt.IsZero() && now.After(v.expiresAt)
}

// MemoryStore is an in-process Store for tests and single-node setups.
// Expiry is checked lazily on access.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]memoryValue
	zsets  map[string]map[string]float64
	hashes map[string]map[string]int64
	ttls   map[string]time.Time

	// now is swappable in tests.
	now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]memoryValue),
		zsets:  make(map[string]map[string]float64),
		hashes: make(map[string]map[string]int64),
		ttls:   make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	if v.expired(s.now()) {
		delete(s.values, key)
		return "", ErrKeyNotFound
	}
	return v.data, nil
}

func (s *MemoryStore) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = memoryValue{data: value, expiresAt: s.expiry(ttl)}
	return nil
}

func (s *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.values[key]; ok && !v.expired(s.now()) {
		return false, nil
	}
	s.values[key] = memoryValue{data: value, expiresAt: s.expiry(ttl)}
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.deleteKey(key)
	}
	return nil
}

func (s *MemoryStore) DeleteByPattern(_ context.Context, pattern string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.values {
		if matched, _ := path.Match(pattern, key); matched {
			delete(s.values, key)
			removed++
		}
	}
	for key := range s.zsets {
		if matched, _ := path.Match(pattern, key); matched {
			s.deleteKey(key)
			removed++
		}
	}
	for key := range s.hashes {
		if matched, _ := path.Match(pattern, key); matched {
			s.deleteKey(key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) ZIncrBy(_ context.Context, key, member string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zset(key)[member] += delta
	return nil
}

func (s *MemoryStore) ZAdd(_ context.Context, key string, members ...Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	zs := s.zset(key)
	for _, m := range members {
		zs[m.Name] = m.Score
	}
	return nil
}

func (s *MemoryStore) ZTop(_ context.Context, key string, n int) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return []Member{}, nil
	}
	zs, ok := s.zsets[key]
	if !ok || s.keyExpired(key) {
		return []Member{}, nil
	}

	members := make([]Member, 0, len(zs))
	for name, score := range zs {
		members = append(members, Member{Name: name, Score: score})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		// Redis breaks score ties by reverse lexical order in ZREVRANGE.
		return members[i].Name > members[j].Name
	})
	if len(members) > n {
		members = members[:n]
	}
	return members, nil
}

func (s *MemoryStore) ZScores(_ context.Context, key string, members []string) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]float64, len(members))
	zs, ok := s.zsets[key]
	if !ok || s.keyExpired(key) {
		return result, nil
	}
	for _, m := range members {
		if score, present := zs[m]; present {
			result[m] = score
		}
	}
	return result, nil
}

func (s *MemoryStore) HIncrBy(_ context.Context, key, field string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hashes[key]
	if !ok || s.keyExpired(key) {
		h = make(map[string]int64)
		s.hashes[key] = h
		delete(s.ttls, key)
	}
	h[field] += delta
	return nil
}

func (s *MemoryStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]string)
	h, ok := s.hashes[key]
	if !ok || s.keyExpired(key) {
		return result, nil
	}
	for field, val := range h {
		result[field] = strconv.FormatInt(val, 10)
	}
	return result, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.values[key]; ok {
		v.expiresAt = s.expiry(ttl)
		s.values[key] = v
		return nil
	}
	if _, ok := s.zsets[key]; ok {
		s.ttls[key] = s.expiry(ttl)
		return nil
	}
	if _, ok := s.hashes[key]; ok {
		s.ttls[key] = s.expiry(ttl)
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *MemoryStore) zset(key string) map[string]float64 {
	zs, ok := s.zsets[key]
	if !ok || s.keyExpired(key) {
		zs = make(map[string]float64)
		s.zsets[key] = zs
		delete(s.ttls, key)
	}
	return zs
}

func (s *MemoryStore) keyExpired(key string) bool {
	exp, ok := s.ttls[key]
	return ok && s.now().After(exp)
}

func (s *MemoryStore) deleteKey(key string) {
	delete(s.values, key)
	delete(s.zsets, key)
	delete(s.hashes, key)
	delete(s.ttls, key)
}
