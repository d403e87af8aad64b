package mailbox

import (
	"strconv"
	"sync"
	"time"

	"github.com/amoylab/oscbridge/internal/common/cnst"
)

// Sequence hands out request ids and channel names. It outlives clients so
// that ids keep increasing and channel names keep changing across reconnects.
type Sequence struct {
	mu          sync.Mutex
	lastID      int64
	lastChannel int64
}

func NewSequence() *Sequence {
	return &Sequence{}
}

// NextID returns the next request id. The counter is never reset.
func (s *Sequence) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID
}

// NextChannel derives the channel name for a new epoch from now. If the clock
// has not advanced past the previous name the suffix is bumped.
func (s *Sequence) NextChannel(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec := now.Unix()
	if sec <= s.lastChannel {
		sec = s.lastChannel + 1
	}
	s.lastChannel = sec
	return cnst.ChannelPrefix + strconv.FormatInt(sec, 10)
}
