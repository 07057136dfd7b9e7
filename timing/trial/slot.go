package trial

import "github.com/sarchlab/ransim/fixed"

// SlotState is a memory slot's lifecycle state.
type SlotState int

const (
	// SlotKeepUnread marks a slot with nothing to fetch.
	SlotKeepUnread SlotState = iota
	// SlotUnread marks a slot whose read has not been granted yet.
	SlotUnread
	// SlotReading marks a slot with a read in flight.
	SlotReading
	// SlotRead marks a slot holding a valid value.
	SlotRead
	// SlotError marks a failed read. Terminal until the next trial reset.
	SlotError
)

// MemorySlot tracks one outstanding or completed point read.
type MemorySlot struct {
	ID     int
	Offset uint64
	State  SlotState
	Value  fixed.Point
}

// request arms the slot for a read of the record at offset.
func (s *MemorySlot) request(offset uint64) {
	s.Offset = offset
	s.State = SlotUnread
	s.Value = fixed.Point{}
}

// clear returns the slot to its idle state.
func (s *MemorySlot) clear() {
	s.State = SlotKeepUnread
	s.Value = fixed.Point{}
}
