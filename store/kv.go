package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// KV is the substrate contract the data layer is built on: an external,
// already-durable key-value service with single-key atomicity. Implemented
// by kvclient.Bucket (NATS JetStream KV) and testutil.MemoryKV.
type KV interface {
	// Get returns the value for key, or found=false when the key is absent.
	// A missing key is not an error.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Put creates or overwrites key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists all keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Key namespaces within the flat substrate. NATS KV restricts key
// characters, so every variable segment goes through encodeSegment.
const (
	recordNamespace = "rec"
	indexNamespace  = "idx"
	systemNamespace = "sys"
)

// MigrationHistoryKey is the well-known key holding migration history.
const MigrationHistoryKey = systemNamespace + ".migrations"

// RecordKey builds the primary storage key for a record.
func RecordKey(table, id string) string {
	return recordNamespace + "." + table + "." + encodeSegment(id)
}

// RecordPrefix builds the key prefix covering every record of a table.
func RecordPrefix(table string) string {
	return recordNamespace + "." + table + "."
}

// IndexKey builds the key of the index bucket for one field value.
func IndexKey(table, field string, value string) string {
	return indexNamespace + "." + table + "." + field + "." + encodeSegment(value)
}

// IndexPrefix builds the key prefix covering one field's index buckets.
func IndexPrefix(table, field string) string {
	return indexNamespace + "." + table + "." + field + "."
}

// IDFromRecordKey recovers the record id from a primary storage key.
func IDFromRecordKey(table, key string) (string, bool) {
	prefix := RecordPrefix(table)
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return decodeSegment(strings.TrimPrefix(key, prefix)), true
}

// encodeSegment makes an arbitrary string safe as one key segment.
// Letters, digits, '-' and '_' pass through; every other byte is escaped as
// "=XX" (uppercase hex). '=' is valid in NATS KV keys and never emitted
// bare, so the encoding is collision-free and reversible.
func encodeSegment(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "=%02X", c)
		}
	}
	return b.String()
}

// decodeSegment reverses encodeSegment. Malformed escapes pass through
// verbatim; they cannot be produced by encodeSegment.
func decodeSegment(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '=' && i+2 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// indexValue renders a field value into its index-bucket key segment.
// ok=false means the value does not get an index entry (absent or nil).
func indexValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}
