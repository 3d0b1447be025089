package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Inbound topic filters consumed by a skill process.
const (
	FilterIntent       = "hermes/intent/#"
	FilterHotword      = "hermes/hotword/+/detected"
	FilterSessionEnded = "hermes/dialogueManager/sessionEnded"
	FilterASRDebug     = "hermes/asr/#"
	FilterNLUDebug     = "hermes/nlu/#"
)

// Outbound topics published by a skill process.
const (
	TopicContinueSession = "hermes/dialogueManager/continueSession"
	TopicEndSession      = "hermes/dialogueManager/endSession"
	TopicSay             = "hermes/tts/say"
)

const (
	intentTopicPrefix  = "hermes/intent/"
	hotwordTopicPrefix = "hermes/hotword/"
	asrTopicPrefix     = "hermes/asr/"
	nluTopicPrefix     = "hermes/nlu/"
	sessionEndedTopic  = "hermes/dialogueManager/sessionEnded"
)

// ErrMalformed reports an event payload or topic that cannot be decoded.
var ErrMalformed = errors.New("malformed hermes event")

// Kind describes the event category a topic addresses.
type Kind int

const (
	// KindUnknown indicates a topic the dialogue protocol does not consume.
	KindUnknown Kind = iota
	// KindIntent indicates a recognized-intent event.
	KindIntent
	// KindHotword indicates a wake-word detection event.
	KindHotword
	// KindSessionEnded indicates a dialogue-session termination event.
	KindSessionEnded
	// KindDebug indicates an ASR/NLU debug tap message.
	KindDebug
)

// SubscriptionFilters returns the topic filters a skill process subscribes to.
func SubscriptionFilters() []string {
	return []string{
		FilterIntent,
		FilterHotword,
		FilterSessionEnded,
		FilterASRDebug,
		FilterNLUDebug,
	}
}

// ClassifyTopic maps a concrete topic onto an event kind. For hotword topics
// the detector id is extracted from the fixed hermes/hotword/<id>/detected
// shape; any other hotword shape is a decode error.
func ClassifyTopic(topic string) (Kind, string, error) {
	switch {
	case strings.HasPrefix(topic, intentTopicPrefix):
		return KindIntent, "", nil
	case topic == sessionEndedTopic:
		return KindSessionEnded, "", nil
	case strings.HasPrefix(topic, hotwordTopicPrefix):
		segments := strings.Split(topic, "/")
		if len(segments) != 4 || segments[3] != "detected" || segments[2] == "" {
			return KindUnknown, "", fmt.Errorf("%w: unexpected hotword topic %q", ErrMalformed, topic)
		}
		return KindHotword, segments[2], nil
	case strings.HasPrefix(topic, asrTopicPrefix), strings.HasPrefix(topic, nluTopicPrefix):
		return KindDebug, "", nil
	default:
		return KindUnknown, "", nil
	}
}

// SlotValue carries the normalized slot value and its kind tag.
type SlotValue struct {
	Value any    `json:"value"`
	Kind  string `json:"kind"`
}

// Range is a half-open [start, end) character range into the input text.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Slot is the wire form of one extracted intent parameter.
type Slot struct {
	SlotName string    `json:"slotName"`
	RawValue string    `json:"rawValue"`
	Value    SlotValue `json:"value"`
	Range    Range     `json:"range"`
	Entity   string    `json:"entity"`
}

// IntentPayload is the wire form of a hermes/intent/# message.
type IntentPayload struct {
	SessionID  string `json:"sessionId"`
	SiteID     string `json:"siteId"`
	CustomData string `json:"customData,omitempty"`
	Input      string `json:"input"`
	Intent     struct {
		IntentName  string  `json:"intentName"`
		Probability float64 `json:"probability"`
	} `json:"intent"`
	Slots []Slot `json:"slots"`
}

// SessionEndedPayload is the wire form of a sessionEnded message.
type SessionEndedPayload struct {
	SessionID   string `json:"sessionId"`
	SiteID      string `json:"siteId"`
	CustomData  string `json:"customData,omitempty"`
	Termination struct {
		Reason string `json:"reason"`
		Error  string `json:"error,omitempty"`
	} `json:"termination"`
}

// HotwordPayload is the wire form of a hotword detected message.
type HotwordPayload struct {
	ModelID string `json:"modelId"`
	SiteID  string `json:"siteId"`
}

// DecodeIntent parses and validates an intent payload.
func DecodeIntent(payload []byte) (IntentPayload, error) {
	var decoded IntentPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return IntentPayload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if decoded.SessionID == "" {
		return IntentPayload{}, fmt.Errorf("%w: intent missing sessionId", ErrMalformed)
	}
	if decoded.SiteID == "" {
		return IntentPayload{}, fmt.Errorf("%w: intent missing siteId", ErrMalformed)
	}
	if decoded.Intent.IntentName == "" {
		return IntentPayload{}, fmt.Errorf("%w: intent missing intent.intentName", ErrMalformed)
	}
	// Slot ranges count characters of the input, not bytes.
	inputLen := utf8.RuneCountInString(decoded.Input)
	for _, slot := range decoded.Slots {
		if slot.Range.Start < 0 || slot.Range.End < slot.Range.Start || slot.Range.End > inputLen {
			return IntentPayload{}, fmt.Errorf("%w: slot %q range out of bounds", ErrMalformed, slot.SlotName)
		}
	}
	return decoded, nil
}

// DecodeSessionEnded parses and validates a sessionEnded payload.
func DecodeSessionEnded(payload []byte) (SessionEndedPayload, error) {
	var decoded SessionEndedPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return SessionEndedPayload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if decoded.SessionID == "" {
		return SessionEndedPayload{}, fmt.Errorf("%w: sessionEnded missing sessionId", ErrMalformed)
	}
	if decoded.SiteID == "" {
		return SessionEndedPayload{}, fmt.Errorf("%w: sessionEnded missing siteId", ErrMalformed)
	}
	if decoded.Termination.Reason == "" {
		return SessionEndedPayload{}, fmt.Errorf("%w: sessionEnded missing termination.reason", ErrMalformed)
	}
	return decoded, nil
}

// DecodeHotword parses and validates a hotword detected payload.
func DecodeHotword(payload []byte) (HotwordPayload, error) {
	var decoded HotwordPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return HotwordPayload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if decoded.ModelID == "" {
		return HotwordPayload{}, fmt.Errorf("%w: hotword missing modelId", ErrMalformed)
	}
	if decoded.SiteID == "" {
		return HotwordPayload{}, fmt.Errorf("%w: hotword missing siteId", ErrMalformed)
	}
	return decoded, nil
}

type continueSessionPayload struct {
	SessionID    string   `json:"sessionId"`
	Text         string   `json:"text"`
	IntentFilter []string `json:"intentFilter,omitempty"`
}

type sayPayload struct {
	SessionID string `json:"sessionId"`
	SiteID    string `json:"siteId"`
	Text      string `json:"text"`
}

type endSessionPayload struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text,omitempty"`
}

// EncodeContinueSession builds a continueSession payload. The intentFilter key
// is omitted when no filters are given.
func EncodeContinueSession(sessionID string, text string, intentFilters []string) ([]byte, error) {
	return json.Marshal(continueSessionPayload{
		SessionID:    sessionID,
		Text:         text,
		IntentFilter: intentFilters,
	})
}

// EncodeSay builds a tts say payload.
func EncodeSay(sessionID string, siteID string, text string) ([]byte, error) {
	return json.Marshal(sayPayload{
		SessionID: sessionID,
		SiteID:    siteID,
		Text:      text,
	})
}

// EncodeEndSession builds an endSession payload. The text key is omitted when
// empty.
func EncodeEndSession(sessionID string, text string) ([]byte, error) {
	return json.Marshal(endSessionPayload{
		SessionID: sessionID,
		Text:      text,
	})
}
