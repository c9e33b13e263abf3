// Package testutil provides in-memory test doubles for the KV substrate and
// small helpers shared across package tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryKV is an in-memory key-value substrate. Thread-safe. It satisfies
// the store.KV contract: missing keys are not errors, Keys filters by
// prefix.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV creates an empty in-memory substrate.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Get returns the value for key, or found=false when absent.
func (kv *MemoryKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	val, ok := kv.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

// Put creates or overwrites key.
func (kv *MemoryKV) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	kv.data[key] = stored
	return nil
}

// Delete removes key. Absent keys are not an error.
func (kv *MemoryKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.data, key)
	return nil
}

// Keys lists all keys starting with prefix, sorted for determinism.
func (kv *MemoryKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	keys := make([]string, 0, len(kv.data))
	for k := range kv.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored keys.
func (kv *MemoryKV) Len() int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return len(kv.data)
}

// Dump returns a copy of the full key set (debugging aid).
func (kv *MemoryKV) Dump() map[string][]byte {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	out := make(map[string][]byte, len(kv.data))
	for k, v := range kv.data {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// FaultKV wraps a substrate and injects errors for chosen operations,
// optionally scoped to a key prefix. Zero value passes everything through.
type FaultKV struct {
	Inner interface {
		Get(ctx context.Context, key string) ([]byte, bool, error)
		Put(ctx context.Context, key string, value []byte) error
		Delete(ctx context.Context, key string) error
		Keys(ctx context.Context, prefix string) ([]string, error)
	}

	mu     sync.Mutex
	faults map[string]error // op -> error
	prefix string
}

// NewFaultKV wraps inner with no faults armed.
func NewFaultKV(inner *MemoryKV) *FaultKV {
	return &FaultKV{Inner: inner, faults: make(map[string]error)}
}

// FailOn arms an error for an operation ("get", "put", "delete", "keys"),
// limited to keys with the given prefix ("" matches every key).
func (f *FaultKV) FailOn(op, keyPrefix string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[op] = err
	f.prefix = keyPrefix
}

// Reset disarms all faults.
func (f *FaultKV) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = make(map[string]error)
	f.prefix = ""
}

func (f *FaultKV) fault(op, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err, ok := f.faults[op]
	if !ok {
		return nil
	}
	if f.prefix != "" && !strings.HasPrefix(key, f.prefix) {
		return nil
	}
	return err
}

// Get implements the substrate contract.
func (f *FaultKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := f.fault("get", key); err != nil {
		return nil, false, err
	}
	return f.Inner.Get(ctx, key)
}

// Put implements the substrate contract.
func (f *FaultKV) Put(ctx context.Context, key string, value []byte) error {
	if err := f.fault("put", key); err != nil {
		return err
	}
	return f.Inner.Put(ctx, key, value)
}

// Delete implements the substrate contract.
func (f *FaultKV) Delete(ctx context.Context, key string) error {
	if err := f.fault("delete", key); err != nil {
		return err
	}
	return f.Inner.Delete(ctx, key)
}

// Keys implements the substrate contract.
func (f *FaultKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := f.fault("keys", prefix); err != nil {
		return nil, err
	}
	return f.Inner.Keys(ctx, prefix)
}
