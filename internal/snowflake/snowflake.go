// Package snowflake mints the 64-bit ids that identify every entity in
// the engine: servers, categories, channels, roles, and overrides. An id
// embeds its creation instant, so entity ids double as a creation order.
package snowflake

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Ids count milliseconds from this epoch instead of Unix time, which
// keeps the timestamp field within its 42 bits for over a century.
var epoch = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// Layout, high to low: 42 bits of milliseconds, 10 bits of node id,
// 12 bits of per-millisecond sequence.
const (
	nodeBits     = 10
	sequenceBits = 12

	// MaxNode is the largest node id NewGenerator accepts.
	MaxNode = 1<<nodeBits - 1

	maxSequence = 1<<sequenceBits - 1

	nodeShift = sequenceBits
	timeShift = nodeBits + sequenceBits
)

// ID is an entity id. It marshals to JSON as a decimal string so
// JavaScript clients never round it through a float64.
type ID int64

func (id ID) Int64() int64 { return int64(id) }

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// Time returns the creation instant embedded in the id.
func (id ID) Time() time.Time {
	return time.UnixMilli(int64(id)>>timeShift + epoch)
}

// Parse reads the decimal form produced by ID.String.
func Parse(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("snowflake: parse %q: %w", s, err)
	}
	return ID(n), nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, id.String()), nil
}

// UnmarshalJSON accepts a bare number as well as the quoted form.
func (id *ID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) > 0 && s[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("snowflake: unmarshal %s: %w", data, err)
		}
	}
	parsed, err := Parse(s)
	if err != nil {
		return fmt.Errorf("snowflake: unmarshal %s: %w", data, err)
	}
	*id = parsed
	return nil
}

// Generator mints ids for one node. Every process that creates entities
// needs its own node id; two generators sharing one can mint duplicates.
type Generator struct {
	mu   sync.Mutex
	node int64
	seq  int64
	last int64 // ms since epoch of the most recent id
}

// NewGenerator returns a generator for the given node id, which must be
// in [0, MaxNode].
func NewGenerator(node int64) (*Generator, error) {
	if node < 0 || node > MaxNode {
		return nil, fmt.Errorf("snowflake: node id %d out of range [0, %d]", node, MaxNode)
	}
	return &Generator{node: node}, nil
}

// Generate mints the next id. Ids from one generator are strictly
// increasing, even if the wall clock steps backwards.
func (g *Generator) Generate() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli() - epoch
	if now < g.last {
		// Clock went backwards; keep minting against the old reading.
		now = g.last
	}

	if now == g.last {
		g.seq = (g.seq + 1) & maxSequence
		if g.seq == 0 {
			// 4096 ids in one millisecond; wait out the remainder.
			for now <= g.last {
				time.Sleep(50 * time.Microsecond)
				now = time.Now().UnixMilli() - epoch
			}
		}
	} else {
		g.seq = 0
	}
	g.last = now

	return ID(now<<timeShift | g.node<<nodeShift | g.seq)
}
