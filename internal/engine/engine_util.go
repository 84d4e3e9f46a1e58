package engine

import "slices"

func NewState(name string, rules Ruleset) State {
	return State{
		Name:    name,
		Ruleset: rules,
		Status:  StatusWaiting,
		Round:   1,
		Slots:   []Slot{},
	}
}

func (s State) Clone() State {
	c := s
	c.Slots = slices.Clone(s.Slots)
	if c.Slots == nil {
		c.Slots = []Slot{}
	}
	return c
}

func SlotIndex(s State, connID string) int {
	return slices.IndexFunc(s.Slots, func(sl Slot) bool { return sl.ConnID == connID })
}

func ContainsEvent(events []Event, eventType EventType) bool {
	return slices.ContainsFunc(events, func(e Event) bool { return e.Type == eventType })
}

// Joinable reports whether the room should show up in the lobby listing.
func Joinable(s State) bool {
	return s.Status == StatusWaiting && len(s.Slots) < MaxSlots
}

func clearRound(sl *Slot) {
	sl.Move = ""
	sl.Committed = false
}

func resetMatch(s State) State {
	for i := range s.Slots {
		clearRound(&s.Slots[i])
		s.Slots[i].RematchReady = false
		s.Slots[i].Health = s.Ruleset.InitialHealth
	}
	s.Round = 1
	s.Status = StatusReady
	return s
}

func allCommitted(s State) bool {
	if len(s.Slots) < MaxSlots {
		return false
	}
	return !slices.ContainsFunc(s.Slots, func(sl Slot) bool { return !sl.Committed })
}

func allRematchReady(s State) bool {
	return !slices.ContainsFunc(s.Slots, func(sl Slot) bool { return !sl.RematchReady })
}

func otherSlot(s State, idx int) *Slot {
	for i := range s.Slots {
		if i != idx {
			return &s.Slots[i]
		}
	}
	return nil
}
