package kvclient

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/fulqrun/crmstore/errors"
	"github.com/fulqrun/crmstore/pkg/retry"
)

// BucketOptions configures bucket operation behavior.
type BucketOptions struct {
	MaxRetries    int           // retry attempts on transient failures
	RetryDelay    time.Duration // initial delay between retries
	MaxRetryDelay time.Duration // ceiling for backoff
	Timeout       time.Duration // per-operation timeout
}

// DefaultBucketOptions returns defaults tuned for a local or nearby server.
func DefaultBucketOptions() BucketOptions {
	return BucketOptions{
		MaxRetries:    3,
		RetryDelay:    10 * time.Millisecond,
		MaxRetryDelay: time.Second,
		Timeout:       5 * time.Second,
	}
}

// Bucket adapts a JetStream KV bucket to the flat substrate contract:
// Get reports absence without error, Delete purges, and Keys lists by
// prefix. Transient server errors are retried with backoff.
type Bucket struct {
	kv      jetstream.KeyValue
	options BucketOptions
	logger  *slog.Logger
}

func newBucket(kv jetstream.KeyValue, logger *slog.Logger) *Bucket {
	return &Bucket{
		kv:      kv,
		options: DefaultBucketOptions(),
		logger:  logger,
	}
}

// Configure replaces the bucket options.
func (b *Bucket) Configure(opts BucketOptions) {
	b.options = opts
}

func (b *Bucket) retryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  b.options.MaxRetries + 1,
		InitialDelay: b.options.RetryDelay,
		MaxDelay:     b.options.MaxRetryDelay,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

func (b *Bucket) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.options.Timeout > 0 {
		return context.WithTimeout(ctx, b.options.Timeout)
	}
	return ctx, func() {}
}

// Get retrieves a value. A missing key is (nil, false, nil), not an error.
func (b *Bucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := b.applyTimeout(ctx)
	defer cancel()

	var value []byte
	var found bool
	err := retry.Do(ctx, b.retryConfig(), func() error {
		entry, err := b.kv.Get(ctx, key)
		if err != nil {
			if isNotFoundError(err) {
				value, found = nil, false
				return nil
			}
			return err
		}
		value, found = entry.Value(), true
		return nil
	})
	if err != nil {
		return nil, false, errors.WrapTransient(err, "kvclient", "Get", "read key")
	}
	return value, found, nil
}

// Put creates or replaces a key. Last writer wins.
func (b *Bucket) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := b.applyTimeout(ctx)
	defer cancel()

	err := retry.Do(ctx, b.retryConfig(), func() error {
		_, err := b.kv.Put(ctx, key, value)
		return err
	})
	if err != nil {
		return errors.WrapTransient(err, "kvclient", "Put", "write key")
	}
	return nil
}

// Delete removes a key and its history. Deleting a missing key is a no-op;
// Purge rather than Delete so prefix listings never surface tombstones.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	ctx, cancel := b.applyTimeout(ctx)
	defer cancel()

	err := retry.Do(ctx, b.retryConfig(), func() error {
		if err := b.kv.Purge(ctx, key); err != nil {
			if isNotFoundError(err) {
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return errors.WrapTransient(err, "kvclient", "Delete", "purge key")
	}
	return nil
}

// Keys lists the keys under a prefix. JetStream has no server-side prefix
// listing, so the full key set is filtered client-side.
func (b *Bucket) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := b.applyTimeout(ctx)
	defer cancel()

	var matched []string
	err := retry.Do(ctx, b.retryConfig(), func() error {
		lister, err := b.kv.ListKeys(ctx)
		if err != nil {
			if isNoKeysError(err) {
				matched = nil
				return nil
			}
			return err
		}
		matched = matched[:0]
		for key := range lister.Keys() {
			if strings.HasPrefix(key, prefix) {
				matched = append(matched, key)
			}
		}
		return lister.Stop()
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "kvclient", "Keys", "list keys")
	}
	return matched, nil
}

// Status returns the bucket's server-side status.
func (b *Bucket) Status(ctx context.Context) (jetstream.KeyValueStatus, error) {
	ctx, cancel := b.applyTimeout(ctx)
	defer cancel()

	status, err := b.kv.Status(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "kvclient", "Status", "bucket status")
	}
	return status, nil
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, jetstream.ErrKeyNotFound) || stderrors.Is(err, jetstream.ErrKeyDeleted) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "key not found") || strings.Contains(msg, "10037")
}

func isNoKeysError(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, jetstream.ErrNoKeysFound) || strings.Contains(err.Error(), "no keys found")
}
