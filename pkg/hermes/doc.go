// Package hermes provides a client-side dispatch layer for the Hermes
// voice-assistant dialogue protocol.
//
// It routes intent, hotword and session-ended events delivered over a
// publish/subscribe bus to registered skill handlers, and supports
// multi-turn dialogues whose handlers suspend between utterances and
// resume when the next event for their session arrives.
package hermes
