package id

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Snowflake layout: 41 bits of milliseconds since epoch, 10 bits of
// node id, 12 bits of per-millisecond sequence.
const (
	epoch          int64 = 1672531200000 // 2023-01-01T00:00:00Z in ms
	nodeBits       uint8 = 10
	sequenceBits   uint8 = 12
	nodeMax              = -1 ^ (-1 << nodeBits)
	sequenceMask         = -1 ^ (-1 << sequenceBits)
	nodeShift      uint8 = sequenceBits
	timestampShift uint8 = sequenceBits + nodeBits
)

var ErrInvalidNode = fmt.Errorf("node ID must be between 0 and %d", nodeMax)

// Snowflake hands out time-ordered numeric ids, one generator per
// process with a distinct node id.
type Snowflake struct {
	mu       sync.Mutex
	lastMs   int64
	nodeID   int64
	sequence int64
}

func NewSnowflake(nodeID int64) (*Snowflake, error) {
	if nodeID < 0 || nodeID > int64(nodeMax) {
		return nil, ErrInvalidNode
	}
	return &Snowflake{nodeID: nodeID}, nil
}

// Generate returns the next id as a decimal string. Ids issued by one
// generator are strictly increasing even across a clock step backwards:
// the generator spins until the wall clock catches up with the last
// issued millisecond.
func (s *Snowflake) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	for now < s.lastMs {
		now = time.Now().UnixMilli()
	}

	if now == s.lastMs {
		s.sequence = (s.sequence + 1) & sequenceMask
		if s.sequence == 0 {
			// 4096 ids in one millisecond; roll to the next.
			for now <= s.lastMs {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}
	s.lastMs = now

	id := ((now - epoch) << timestampShift) |
		(s.nodeID << nodeShift) |
		s.sequence

	return strconv.FormatInt(id, 10)
}

// New returns a prefixed ULID, e.g. "thr_01J9Z...". Prefixes keep entity
// kinds distinguishable in logs and foreign keys.
func New(prefix string) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	return prefix + "_" + id.String()
}
