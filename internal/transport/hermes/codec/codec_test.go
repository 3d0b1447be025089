package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassifyTopic(t *testing.T) {
	tests := []struct {
		topic string
		kind  Kind
		id    string
	}{
		{topic: "hermes/intent/setTimer", kind: KindIntent},
		{topic: "hermes/intent/ns:setTimer", kind: KindIntent},
		{topic: "hermes/dialogueManager/sessionEnded", kind: KindSessionEnded},
		{topic: "hermes/hotword/default/detected", kind: KindHotword, id: "default"},
		{topic: "hermes/asr/textCaptured", kind: KindDebug},
		{topic: "hermes/nlu/query", kind: KindDebug},
		{topic: "hermes/tts/say", kind: KindUnknown},
		{topic: "unrelated/topic", kind: KindUnknown},
	}
	for _, tt := range tests {
		kind, id, err := ClassifyTopic(tt.topic)
		if err != nil {
			t.Fatalf("ClassifyTopic(%q) error: %v", tt.topic, err)
		}
		if kind != tt.kind {
			t.Fatalf("ClassifyTopic(%q) kind=%v, want %v", tt.topic, kind, tt.kind)
		}
		if id != tt.id {
			t.Fatalf("ClassifyTopic(%q) id=%q, want %q", tt.topic, id, tt.id)
		}
	}
}

func TestClassifyTopicBadHotwordShape(t *testing.T) {
	for _, topic := range []string{
		"hermes/hotword/detected",
		"hermes/hotword/a/b/detected",
		"hermes/hotword/default/loaded",
		"hermes/hotword//detected",
	} {
		_, _, err := ClassifyTopic(topic)
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("ClassifyTopic(%q) error=%v, want ErrMalformed", topic, err)
		}
	}
}

func TestDecodeIntent(t *testing.T) {
	payload := []byte(`{
		"sessionId": "s-1",
		"siteId": "default",
		"input": "set a timer for ten minutes",
		"intent": {"intentName": "sigmaris:setTimer", "probability": 0.92},
		"slots": [{
			"slotName": "duration",
			"rawValue": "ten minutes",
			"value": {"value": 600, "kind": "Duration"},
			"range": {"start": 16, "end": 27},
			"entity": "snips/duration"
		}]
	}`)

	decoded, err := DecodeIntent(payload)
	if err != nil {
		t.Fatalf("DecodeIntent error: %v", err)
	}
	if decoded.Intent.IntentName != "sigmaris:setTimer" {
		t.Fatalf("intentName=%q, want %q", decoded.Intent.IntentName, "sigmaris:setTimer")
	}
	if decoded.Intent.Probability != 0.92 {
		t.Fatalf("probability=%v, want 0.92", decoded.Intent.Probability)
	}
	if len(decoded.Slots) != 1 {
		t.Fatalf("slots=%d, want 1", len(decoded.Slots))
	}
	slot := decoded.Slots[0]
	if got := decoded.Input[slot.Range.Start:slot.Range.End]; got != "ten minutes" {
		t.Fatalf("slot range text=%q, want %q", got, "ten minutes")
	}
}

func TestDecodeIntentMissingFields(t *testing.T) {
	tests := []string{
		`not json`,
		`{"siteId":"default","input":"x","intent":{"intentName":"a","probability":1}}`,
		`{"sessionId":"s","input":"x","intent":{"intentName":"a","probability":1}}`,
		`{"sessionId":"s","siteId":"default","input":"x","intent":{"probability":1}}`,
	}
	for _, payload := range tests {
		if _, err := DecodeIntent([]byte(payload)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("DecodeIntent(%s) error=%v, want ErrMalformed", payload, err)
		}
	}
}

func TestDecodeIntentSlotRangeOutOfBounds(t *testing.T) {
	payload := []byte(`{
		"sessionId": "s-1",
		"siteId": "default",
		"input": "short",
		"intent": {"intentName": "a", "probability": 1},
		"slots": [{"slotName": "x", "rawValue": "y", "value": {"value": "y", "kind": "Custom"}, "range": {"start": 2, "end": 99}, "entity": "e"}]
	}`)
	if _, err := DecodeIntent(payload); !errors.Is(err, ErrMalformed) {
		t.Fatalf("DecodeIntent error=%v, want ErrMalformed", err)
	}
}

func TestDecodeIntentSlotRangeBoundsAreCharacters(t *testing.T) {
	// "héllo" is 5 characters in 6 bytes.
	build := func(end int) []byte {
		return []byte(fmt.Sprintf(`{
			"sessionId": "s-1",
			"siteId": "default",
			"input": "héllo",
			"intent": {"intentName": "a", "probability": 1},
			"slots": [{"slotName": "x", "rawValue": "y", "value": {"value": "y", "kind": "Custom"}, "range": {"start": 0, "end": %d}, "entity": "e"}]
		}`, end))
	}
	if _, err := DecodeIntent(build(5)); err != nil {
		t.Fatalf("DecodeIntent error=%v, want range up to character count accepted", err)
	}
	if _, err := DecodeIntent(build(6)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("DecodeIntent error=%v, want ErrMalformed past character count", err)
	}
}

func TestDecodeSessionEnded(t *testing.T) {
	payload := []byte(`{"sessionId":"s-1","siteId":"default","termination":{"reason":"intentNotRecognized"}}`)
	decoded, err := DecodeSessionEnded(payload)
	if err != nil {
		t.Fatalf("DecodeSessionEnded error: %v", err)
	}
	if decoded.Termination.Reason != "intentNotRecognized" {
		t.Fatalf("reason=%q, want %q", decoded.Termination.Reason, "intentNotRecognized")
	}

	if _, err := DecodeSessionEnded([]byte(`{"sessionId":"s-1","siteId":"default","termination":{}}`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("missing reason error=%v, want ErrMalformed", err)
	}
}

func TestDecodeHotword(t *testing.T) {
	decoded, err := DecodeHotword([]byte(`{"modelId":"hey_snips","siteId":"kitchen"}`))
	if err != nil {
		t.Fatalf("DecodeHotword error: %v", err)
	}
	if decoded.ModelID != "hey_snips" || decoded.SiteID != "kitchen" {
		t.Fatalf("decoded=%+v, want modelId=hey_snips siteId=kitchen", decoded)
	}

	if _, err := DecodeHotword([]byte(`{"siteId":"kitchen"}`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("missing modelId error=%v, want ErrMalformed", err)
	}
}

func TestEncodeContinueSessionOmitsEmptyFilter(t *testing.T) {
	payload, err := EncodeContinueSession("s-1", "and then?", nil)
	if err != nil {
		t.Fatalf("EncodeContinueSession error: %v", err)
	}
	if strings.Contains(string(payload), "intentFilter") {
		t.Fatalf("payload=%s, want no intentFilter key", payload)
	}

	payload, err = EncodeContinueSession("s-1", "and then?", []string{"f1", "f2"})
	if err != nil {
		t.Fatalf("EncodeContinueSession error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	filters, ok := decoded["intentFilter"].([]any)
	if !ok || len(filters) != 2 {
		t.Fatalf("intentFilter=%v, want 2 entries", decoded["intentFilter"])
	}
}

func TestEncodeEndSessionOmitsEmptyText(t *testing.T) {
	payload, err := EncodeEndSession("s-1", "")
	if err != nil {
		t.Fatalf("EncodeEndSession error: %v", err)
	}
	if strings.Contains(string(payload), "text") {
		t.Fatalf("payload=%s, want no text key", payload)
	}
}
