package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// KV is an in-memory key/value store implementing ledger.KV. It mirrors
// the SQLite store's contract (absence is not an error, prefix listing is
// ordered) without touching disk.
type KV struct {
	mu   sync.Mutex
	data map[string]string
}

// NewKV creates an empty in-memory store.
func NewKV() *KV {
	return &KV{data: make(map[string]string)}
}

// Get implements ledger.KV.
func (k *KV) Get(_ context.Context, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[key]
	return v, ok, nil
}

// Set implements ledger.KV.
func (k *KV) Set(_ context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = value
	return nil
}

// Delete implements ledger.KV.
func (k *KV) Delete(_ context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, key)
	return nil
}

// Keys implements ledger.KV.
func (k *KV) Keys(_ context.Context, prefix string) ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	var keys []string
	for key := range k.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Corrupt overwrites a key with non-JSON garbage. Used to exercise the
// ledger's fail-soft loads.
func (k *KV) Corrupt(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = "{not json"
}

// Snapshot returns a copy of the whole store, for ledger-diff assertions.
func (k *KV) Snapshot() map[string]string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make(map[string]string, len(k.data))
	for key, val := range k.data {
		out[key] = val
	}
	return out
}
