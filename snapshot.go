package boxcache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"github.com/natefinch/atomic"
)

// Snapshot format. A snapshot is a gob-encoded snapRecord: magic,
// version and policy kind up front, then maxsize, reserved capacity,
// the fixed TTL (fixed-TTL caches only) and the entries in policy
// order. Expiring entries carry their absolute expiry as unix
// nanoseconds, so a snapshot loaded later simply drops what elapsed in
// between.
//
// Loading replays the entries through the normal insert path, which
// re-hashes every key with the receiver's callbacks: snapshots move
// between processes even though hash seeds do not.

const (
	snapMagic   = "BOXC"
	snapVersion = 1
)

// snapKind pins a snapshot to the policy that wrote it. A cache only
// loads snapshots of its own kind.
type snapKind uint8

const (
	kindNone snapKind = iota + 1
	kindRandom
	kindFIFO
	kindLRU
	kindLFU
	kindTTL
	kindVTTL
)

type snapRecord[K, V any] struct {
	Magic    string
	Version  uint16
	Kind     uint8
	MaxSize  uint64
	Capacity uint64
	TTL      int64
	Entries  []snapEntry[K, V]
}

type snapEntry[K, V any] struct {
	Key  K
	Val  V
	Meta uint64
}

// marshalCache encodes the cache behind b. Expiring caches sweep
// first, so elapsed entries never reach the snapshot. Keys and values
// must be gob-encodable.
func marshalCache[K, V any](b *base[K, V], kind snapKind, ttl time.Duration) ([]byte, error) {
	e := b.e

	e.mu.lock()
	defer e.mu.unlock()

	b.sweepLocked()

	rec := snapRecord[K, V]{
		Magic:    snapMagic,
		Version:  snapVersion,
		Kind:     uint8(kind),
		MaxSize:  e.maxsize,
		Capacity: e.arena.capacity(),
		TTL:      int64(ttl),
		Entries:  make([]snapEntry[K, V], 0, e.arena.live()),
	}

	for r, ok := e.ord.first(); ok; r, ok = e.ord.after(r) {
		s := e.arena.slot(r)
		rec.Entries = append(rec.Entries, snapEntry[K, V]{Key: s.key, Val: s.value, Meta: s.meta})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&rec); err != nil {
		return nil, fmt.Errorf("boxcache: encode snapshot: %w", err)
	}

	return buf.Bytes(), nil
}

// unmarshalCache decodes data into the cache behind b, replacing its
// contents and adopting the snapshot's maxsize. Validation runs before
// the first mutation: a malformed snapshot leaves the cache untouched.
// dropExpired skips entries already elapsed at load time. adoptTTL,
// when set, receives the snapshot's fixed TTL under the lock after a
// successful replay.
func unmarshalCache[K, V any](b *base[K, V], kind snapKind, data []byte, dropExpired bool, adoptTTL func(time.Duration)) error {
	var rec snapRecord[K, V]
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}

	if rec.Magic != snapMagic {
		return fmt.Errorf("%w: bad magic %q", ErrMalformedSnapshot, rec.Magic)
	}

	if rec.Version != snapVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrMalformedSnapshot, rec.Version)
	}

	if rec.Kind != uint8(kind) {
		return fmt.Errorf("%w: snapshot kind %d does not match cache kind %d", ErrMalformedSnapshot, rec.Kind, uint8(kind))
	}

	if rec.MaxSize == 0 || rec.MaxSize > maxEntries {
		return fmt.Errorf("%w: maxsize %d out of range", ErrMalformedSnapshot, rec.MaxSize)
	}

	if rec.MaxSize < uint64(len(rec.Entries)) {
		return fmt.Errorf("%w: %d entries exceed maxsize %d", ErrMalformedSnapshot, len(rec.Entries), rec.MaxSize)
	}

	if kind == kindTTL && rec.TTL <= 0 {
		return fmt.Errorf("%w: fixed-ttl snapshot without a ttl", ErrMalformedSnapshot)
	}

	e := b.e

	e.mu.lock()
	defer e.mu.unlock()

	var drop uint64
	if dropExpired {
		drop = e.nowNanos()
	}

	capacity := rec.Capacity
	if capacity > rec.MaxSize {
		capacity = rec.MaxSize
	}
	if n := uint64(len(rec.Entries)); capacity < n {
		capacity = n
	}

	if err := e.replayLocked(rec.Entries, rec.MaxSize, capacity, drop); err != nil {
		return err
	}

	if adoptTTL != nil {
		adoptTTL(time.Duration(rec.TTL))
	}

	return nil
}

// saveFile writes a snapshot to path atomically: the bytes land under
// a temporary name and replace path in one rename, so a crash never
// leaves a truncated snapshot behind.
func saveFile(path string, marshal func() ([]byte, error)) error {
	data, err := marshal()
	if err != nil {
		return err
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("boxcache: write snapshot %s: %w", path, err)
	}

	return nil
}

// loadFile reads a snapshot from path and loads it.
func loadFile(path string, unmarshal func([]byte) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("boxcache: read snapshot %s: %w", path, err)
	}

	return unmarshal(data)
}
