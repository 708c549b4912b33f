package testutil

import (
	"fmt"
	"time"
)

// OpKind identifies a cache operation for the behavior harness.
type OpKind uint8

const (
	OpInsert OpKind = iota
	OpGet
	OpPeek
	OpContains
	OpRemove
	OpPop
	OpDrain
	OpClear
	OpShrink
	OpIterate
	OpAdvance
)

var opKindNames = [...]string{
	"insert", "get", "peek", "contains", "remove",
	"pop", "drain", "clear", "shrink", "iterate", "advance",
}

// Op is one generated cache operation. Unused fields are zero.
type Op struct {
	Kind    OpKind
	Key     string
	Value   int64
	TTL     time.Duration // per-entry lifetime; honored by VTTL only
	N       int           // drain count
	Reuse   bool          // clear mode
	Advance time.Duration // clock step
}

func (op Op) String() string {
	switch op.Kind {
	case OpInsert:
		return fmt.Sprintf("insert(%q, %d, ttl=%v)", op.Key, op.Value, op.TTL)
	case OpGet, OpPeek, OpContains, OpRemove:
		return fmt.Sprintf("%s(%q)", opKindNames[op.Kind], op.Key)
	case OpDrain:
		return fmt.Sprintf("drain(%d)", op.N)
	case OpClear:
		return fmt.Sprintf("clear(reuse=%t)", op.Reuse)
	case OpAdvance:
		return fmt.Sprintf("advance(%v)", op.Advance)
	case OpPop, OpShrink, OpIterate:
		return opKindNames[op.Kind]
	}

	return fmt.Sprintf("op(%d)", op.Kind)
}

// OpGenConfig configures the operation mix. Rates are percentages and
// should sum to 100; the remainder falls through to iterate.
type OpGenConfig struct {
	InsertRate   int
	GetRate      int
	PeekRate     int
	ContainsRate int
	RemoveRate   int
	PopRate      int
	DrainRate    int
	ClearRate    int
	ShrinkRate   int
	AdvanceRate  int
	IterateRate  int

	// KeySpace is the number of distinct keys ops draw from. Small
	// spaces force collisions, updates and evictions.
	KeySpace int

	// LiveKeyBias is the percentage of key picks drawn from keys the
	// model currently holds, so reads and removes mostly hit.
	LiveKeyBias int

	// MaxTTLSeconds bounds generated per-entry lifetimes.
	MaxTTLSeconds int

	// NoExpiryRate is the percentage of VTTL inserts without expiry.
	NoExpiryRate int

	// MaxAdvanceSeconds bounds generated clock steps.
	MaxAdvanceSeconds int
}

// DefaultOpGenConfig returns a balanced mix that exercises updates,
// evictions, expiry boundaries and pops against a small keyspace.
func DefaultOpGenConfig() OpGenConfig {
	return OpGenConfig{
		InsertRate:   30,
		GetRate:      20,
		PeekRate:     5,
		ContainsRate: 5,
		RemoveRate:   10,
		PopRate:      5,
		DrainRate:    3,
		ClearRate:    2,
		ShrinkRate:   2,
		AdvanceRate:  10,
		IterateRate:  8,

		KeySpace:          24,
		LiveKeyBias:       60,
		MaxTTLSeconds:     60,
		NoExpiryRate:      25,
		MaxAdvanceSeconds: 20,
	}
}

// OpGenerator derives a deterministic operation sequence from a byte
// stream. The model is consulted for live keys so the mix stays
// meaningful as the cache fills and drains.
type OpGenerator struct {
	stream *ByteStream
	config OpGenConfig
}

// NewOpGenerator creates a generator over the given bytes.
func NewOpGenerator(seedBytes []byte, cfg OpGenConfig) *OpGenerator {
	return &OpGenerator{stream: NewByteStream(seedBytes), config: cfg}
}

// HasMore reports whether more operations can be generated.
func (g *OpGenerator) HasMore() bool {
	return g.stream.HasMore()
}

// NextOp generates the next operation.
func (g *OpGenerator) NextOp(m *Model) Op {
	choice := g.stream.NextInt(100)
	cumulative := 0

	next := func(rate int) bool {
		cumulative += rate
		return choice < cumulative
	}

	switch {
	case next(g.config.InsertRate):
		return Op{
			Kind:  OpInsert,
			Key:   g.pickKey(m),
			Value: g.stream.NextInt64(),
			TTL:   g.pickTTL(),
		}
	case next(g.config.GetRate):
		return Op{Kind: OpGet, Key: g.pickKey(m)}
	case next(g.config.PeekRate):
		return Op{Kind: OpPeek, Key: g.pickKey(m)}
	case next(g.config.ContainsRate):
		return Op{Kind: OpContains, Key: g.pickKey(m)}
	case next(g.config.RemoveRate):
		return Op{Kind: OpRemove, Key: g.pickKey(m)}
	case next(g.config.PopRate):
		return Op{Kind: OpPop}
	case next(g.config.DrainRate):
		return Op{Kind: OpDrain, N: 1 + g.stream.NextInt(5)}
	case next(g.config.ClearRate):
		return Op{Kind: OpClear, Reuse: g.stream.NextBool()}
	case next(g.config.ShrinkRate):
		return Op{Kind: OpShrink}
	case next(g.config.AdvanceRate):
		return Op{Kind: OpAdvance, Advance: g.stream.NextSeconds(g.config.MaxAdvanceSeconds)}
	default:
		return Op{Kind: OpIterate}
	}
}

// pickKey draws from the model's live keys at the configured bias,
// otherwise from the fixed keyspace.
func (g *OpGenerator) pickKey(m *Model) string {
	if g.stream.NextPercent(g.config.LiveKeyBias) {
		if keys := m.Keys(); len(keys) > 0 {
			return keys[g.stream.NextInt(len(keys))]
		}
	}

	return fmt.Sprintf("k%02d", g.stream.NextInt(g.config.KeySpace))
}

// pickTTL returns a per-entry lifetime; zero means no expiry.
func (g *OpGenerator) pickTTL() time.Duration {
	if g.stream.NextPercent(g.config.NoExpiryRate) {
		return 0
	}

	return g.stream.NextSeconds(g.config.MaxTTLSeconds)
}
