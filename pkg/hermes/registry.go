package hermes

import "strings"

// IntentHandler handles a recognized intent to completion. Errors are logged
// and do not stop dispatch of other matching handlers.
type IntentHandler func(*IntentDetected) error

// DialogueHandler conducts a multi-turn dialogue. It may suspend between
// turns via Dialogue.Ask; the returned text ends the session (omitted from
// the endSession message when empty).
type DialogueHandler func(*Dialogue, *IntentDetected) (string, error)

// HotwordHandler handles a wake-word detection.
type HotwordHandler func(HotwordDetected) error

// SessionEndedHandler handles a session termination.
type SessionEndedHandler func(SessionEnded) error

// IntentKey identifies a handler registration. Namespaced and un-namespaced
// registrations for the same name are distinct keys.
type IntentKey struct {
	Name      string
	Namespace string
}

type intentEntry struct {
	plain    IntentHandler
	dialogue DialogueHandler
}

// Registry maps intent keys to handlers, built once before dispatch starts.
// Multiple handlers may register for the same key; they run in registration
// order.
type Registry struct {
	intents      map[IntentKey][]intentEntry
	hotword      []HotwordHandler
	sessionEnded []SessionEndedHandler
}

// NewRegistry returns an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		intents: make(map[IntentKey][]intentEntry),
	}
}

// Intent registers a plain handler for an intent name and optional namespace.
// Pass an empty namespace for an un-namespaced registration.
func (r *Registry) Intent(name string, namespace string, fn IntentHandler) {
	key := IntentKey{Name: name, Namespace: namespace}
	r.intents[key] = append(r.intents[key], intentEntry{plain: fn})
}

// Dialogue registers a resumable multi-turn handler for an intent name and
// optional namespace. When several resumable handlers match one intent, the
// first in registration order owns the session and later resumable matches
// are skipped; plain handlers for the same intent all still run.
func (r *Registry) Dialogue(name string, namespace string, fn DialogueHandler) {
	key := IntentKey{Name: name, Namespace: namespace}
	r.intents[key] = append(r.intents[key], intentEntry{dialogue: fn})
}

// OnHotword registers a wake-word handler.
func (r *Registry) OnHotword(fn HotwordHandler) {
	r.hotword = append(r.hotword, fn)
}

// OnSessionEnded registers a session termination handler.
func (r *Registry) OnSessionEnded(fn SessionEndedHandler) {
	r.sessionEnded = append(r.sessionEnded, fn)
}

// resolve finds the handlers for an inbound intent name. A namespaced name
// with no exact registration falls back to the un-namespaced key; an
// unmatched intent resolves to nil, which is a normal unhandled outcome.
func (r *Registry) resolve(intentName string) ([]intentEntry, IntentKey) {
	key := splitIntentName(intentName)
	if entries, ok := r.intents[key]; ok {
		return entries, key
	}
	if key.Namespace != "" {
		fallback := IntentKey{Name: key.Name}
		if entries, ok := r.intents[fallback]; ok {
			return entries, fallback
		}
	}
	return nil, key
}

// splitIntentName splits an inbound name on the first colon: "ns:name" keys as
// (name, ns), a bare name keys as (name, "").
func splitIntentName(intentName string) IntentKey {
	if namespace, name, ok := strings.Cut(intentName, ":"); ok {
		return IntentKey{Name: name, Namespace: namespace}
	}
	return IntentKey{Name: intentName}
}
