package session

import "fmt"

// State is a step of the per-connection state machine.
type State int

// States in the order a successful session visits them. StateError is
// reachable from every state before StateClosed.
const (
	StateAwaitHeader State = iota
	StateAwaitDescriptor
	StateAwaitMediaType
	StateAdmissionCheck
	StateReceivingPayload
	StateDispatching
	StateSendingResponse
	StateClosed
	StateError
)

var stateNames = [...]string{
	StateAwaitHeader:      "await_header",
	StateAwaitDescriptor:  "await_descriptor",
	StateAwaitMediaType:   "await_media_type",
	StateAdmissionCheck:   "admission_check",
	StateReceivingPayload: "receiving_payload",
	StateDispatching:      "dispatching",
	StateSendingResponse:  "sending_response",
	StateClosed:           "closed",
	StateError:            "error",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateClosed
}
