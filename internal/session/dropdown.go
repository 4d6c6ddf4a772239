package session

import "fmt"

// DropdownState is the visibility of the candidate panel.
type DropdownState int

const (
	DropdownClosed DropdownState = iota
	DropdownOpenEmpty
	DropdownOpenPopulated
)

func (s DropdownState) String() string {
	switch s {
	case DropdownClosed:
		return "CLOSED"
	case DropdownOpenEmpty:
		return "OPEN_EMPTY"
	case DropdownOpenPopulated:
		return "OPEN_POPULATED"
	default:
		return fmt.Sprintf("DropdownState(%d)", int(s))
	}
}

func (s DropdownState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s DropdownState) IsOpen() bool {
	return s == DropdownOpenEmpty || s == DropdownOpenPopulated
}

type dropdownEvent int

const (
	eventFocus dropdownEvent = iota
	eventTyped
	eventFetched
	eventCandidatesChanged
	eventOutsideClick
	eventSubmitted
	eventSelected
	eventCleared
)

// nextDropdown is the whole transition table. An empty query always yields
// DropdownClosed.
func nextDropdown(current DropdownState, ev dropdownEvent, queryEmpty bool, candidates int) DropdownState {
	if queryEmpty {
		return DropdownClosed
	}

	fill := func() DropdownState {
		if candidates > 0 {
			return DropdownOpenPopulated
		}
		return DropdownOpenEmpty
	}

	switch ev {
	case eventFocus:
		return fill()
	case eventFetched:
		if candidates > 0 || current.IsOpen() {
			return fill()
		}
		return DropdownClosed
	case eventTyped, eventCandidatesChanged:
		if current.IsOpen() {
			return fill()
		}
		return DropdownClosed
	case eventOutsideClick, eventSubmitted, eventSelected, eventCleared:
		return DropdownClosed
	}
	return current
}
