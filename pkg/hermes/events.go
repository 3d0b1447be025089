package hermes

// Session termination reasons reported by the dialogue manager.
const (
	ReasonNominal             = "nominal"
	ReasonAbortedByUser       = "abortedByUser"
	ReasonIntentNotRecognized = "intentNotRecognized"
	ReasonTimeout             = "timeout"
	ReasonError               = "error"
)

// Event is an inbound dialogue event delivered to a handler. It is one of
// *IntentDetected, HotwordDetected or SessionEnded.
type Event interface {
	event()
}

// Range is a half-open [Start, End) character range into the input text.
type Range struct {
	Start int
	End   int
}

// Slot is one extracted intent parameter. Text is always the substring of the
// intent input covered by Range, even when it duplicates RawValue.
type Slot struct {
	SlotName  string
	RawValue  string
	Value     any
	ValueKind string
	Range     Range
	Entity    string
	Text      string
}

// IntentDetected is a recognized user intent for a dialogue session. Control
// is the action gateway for that session; it is shared by every
// IntentDetected delivered for the same session id.
type IntentDetected struct {
	SessionID   string
	SiteID      string
	CustomData  string
	Input       string
	IntentName  string
	Probability float64
	Slots       map[string]Slot
	Control     *SessionControl
}

func (*IntentDetected) event() {}

// HotwordDetected is a wake-word detection. It carries no session state.
type HotwordDetected struct {
	HotwordID string
	ModelID   string
	SiteID    string
}

func (HotwordDetected) event() {}

// SessionEnded reports the termination of a dialogue session.
type SessionEnded struct {
	SessionID  string
	SiteID     string
	CustomData string
	Reason     string
	Error      string
}

func (SessionEnded) event() {}
