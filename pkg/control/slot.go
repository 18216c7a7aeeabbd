package control

import (
	"sync/atomic"

	"github.com/gwillem/hapticteleop/pkg/fault"
	"github.com/gwillem/hapticteleop/pkg/robot"
)

const slotFresh = 4

// Slot hands a JointVector from one writer goroutine to one reader goroutine
// without locks or allocation. The reader always gets the latest complete
// value; values it did not get to are dropped, never reordered.
type Slot struct {
	bufs  [3]robot.JointVector
	state atomic.Uint32 // index of the shared buffer, plus slotFresh once published
	w     int           // owned by the writer
	r     int           // owned by the reader
}

// NewSlot returns a slot whose value is initial until the first Store.
func NewSlot(initial robot.JointVector) *Slot {
	s := &Slot{w: 0, r: 1}
	for i := range s.bufs {
		s.bufs[i] = initial.Clone()
	}
	s.state.Store(2)
	return s
}

// Len returns the vector length the slot carries.
func (s *Slot) Len() int {
	return len(s.bufs[0])
}

// Store publishes a copy of v. Only one goroutine may call Store.
func (s *Slot) Store(v robot.JointVector) error {
	if len(v) != s.Len() {
		return fault.Configf("slot carries %d joints, got %d", s.Len(), len(v))
	}
	copy(s.bufs[s.w], v)
	prev := s.state.Swap(uint32(s.w) | slotFresh)
	s.w = int(prev &^ slotFresh)
	return nil
}

// Load returns the latest published value. The slice is owned by the reader
// side and stays valid until the next Load. Only one goroutine may call Load.
func (s *Slot) Load() robot.JointVector {
	if s.state.Load()&slotFresh != 0 {
		prev := s.state.Swap(uint32(s.r))
		s.r = int(prev &^ slotFresh)
	}
	return s.bufs[s.r]
}
