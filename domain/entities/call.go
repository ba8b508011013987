package entities

import "time"

// CallState is a step in the marshalling sequence of one guest call.
type CallState string

const (
	CallIdle             CallState = "idle"
	CallMemoryResolved   CallState = "memory_resolved"
	CallBufferObtained   CallState = "buffer_obtained"
	CallArgumentsWritten CallState = "arguments_written"
	CallInvoked          CallState = "invoked"
	CallLocatorRead      CallState = "locator_read"
	CallPayloadRead      CallState = "payload_read"
	CallDecoded          CallState = "decoded"
	CallDone             CallState = "done"
	CallFailed           CallState = "failed"
)

// ArgumentSlot is where one serialized argument was written in guest memory.
type ArgumentSlot struct {
	Address uint32 `json:"address"`
	Length  uint32 `json:"length"`
}

// End returns the offset just past the slot.
func (s ArgumentSlot) End() uint64 {
	return uint64(s.Address) + uint64(s.Length)
}

// ResultWindow is the payload location reported by the guest.
type ResultWindow struct {
	Address int32  `json:"address"`
	Size    uint32 `json:"size"`
}

// CallTrace records what happened during one call. It is handed to call
// observers once the call has finished, successfully or not.
type CallTrace struct {
	Started       time.Time      `json:"started"`
	Err           error          `json:"-"`
	Result        *ResultWindow  `json:"result,omitempty"`
	Operation     string         `json:"operation"`
	States        []CallState    `json:"states"`
	Slots         []ArgumentSlot `json:"slots,omitempty"`
	Duration      time.Duration  `json:"duration"`
	BufferAddress uint32         `json:"buffer_address"`
}

// NewCallTrace starts a trace in the idle state.
func NewCallTrace(operation string) *CallTrace {
	return &CallTrace{
		Operation: operation,
		States:    []CallState{CallIdle},
		Started:   time.Now(),
	}
}

// Advance records a transition.
func (t *CallTrace) Advance(s CallState) {
	t.States = append(t.States, s)
}

// Fail records the failure and moves the trace to the failed state.
func (t *CallTrace) Fail(err error) {
	t.Err = err
	t.Advance(CallFailed)
}

// State returns the current state.
func (t *CallTrace) State() CallState {
	if len(t.States) == 0 {
		return CallIdle
	}
	return t.States[len(t.States)-1]
}

// Reached reports whether the trace passed through s.
func (t *CallTrace) Reached(s CallState) bool {
	for _, st := range t.States {
		if st == s {
			return true
		}
	}
	return false
}

// Finish stamps the duration.
func (t *CallTrace) Finish() {
	t.Duration = time.Since(t.Started)
}
