package boxcache

// Options tunes cache construction. The zero value is valid.
type Options struct {
	// Capacity pre-reserves slot storage so early inserts do not grow
	// the arena. It is clamped to the cache's maxsize; zero reserves
	// the minimum.
	Capacity uint64
}

// Item is one key/value pair, as produced by Items and Drain.
type Item[K, V any] struct {
	Key   K
	Value V
}
