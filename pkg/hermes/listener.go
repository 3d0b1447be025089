package hermes

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kardia-ai/skillbus/internal/session/fsm"
	"github.com/kardia-ai/skillbus/internal/transport/hermes/codec"
)

// Listener is the dispatch engine. It decodes inbound bus messages, routes
// them to registered handlers, and drives the suspend/resume lifecycle of
// multi-turn dialogues. One message is processed to completion before the
// next is accepted.
type Listener struct {
	logger   *zap.Logger
	pub      Publisher
	registry *Registry

	mu        sync.Mutex
	suspended map[string]*dialogueTask
	controls  map[string]*SessionControl
	states    map[string]*fsm.Machine
}

// SessionInfo describes one session with an active gateway.
type SessionInfo struct {
	SessionID string `json:"session_id"`
	SiteID    string `json:"site_id"`
	State     string `json:"state"`
}

// Stats is a snapshot of the listener's session bookkeeping.
type Stats struct {
	ActiveSessions    int `json:"active_sessions"`
	SuspendedSessions int `json:"suspended_sessions"`
}

// NewListener builds a dispatch engine over a handler registry and an
// outbound publisher.
func NewListener(registry *Registry, pub Publisher, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		logger:    logger,
		pub:       pub,
		registry:  registry,
		suspended: make(map[string]*dialogueTask),
		controls:  make(map[string]*SessionControl),
		states:    make(map[string]*fsm.Machine),
	}
}

// SubscriptionFilters returns the topic filters the listener consumes.
func (l *Listener) SubscriptionFilters() []string {
	return codec.SubscriptionFilters()
}

// HandleMessage dispatches one inbound topic/payload pair. Decode failures
// and handler errors are logged and contained; they never stop dispatch of
// subsequent messages.
func (l *Listener) HandleMessage(topic string, payload []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kind, hotwordID, err := codec.ClassifyTopic(topic)
	if err != nil {
		l.logger.Error("dropping malformed event", zap.String("topic", topic), zap.Error(err))
		return
	}

	switch kind {
	case codec.KindIntent:
		l.handleIntent(topic, payload)
	case codec.KindHotword:
		l.handleHotword(hotwordID, topic, payload)
	case codec.KindSessionEnded:
		l.handleSessionEnded(topic, payload)
	case codec.KindDebug:
		l.logger.Debug("bus debug message", zap.String("topic", topic), zap.ByteString("payload", payload))
	default:
		l.logger.Debug("ignoring unrecognized topic", zap.String("topic", topic))
	}
}

// Stats returns current session counts.
func (l *Listener) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		ActiveSessions:    len(l.controls),
		SuspendedSessions: len(l.suspended),
	}
}

// Sessions returns the sessions with an active gateway, sorted by id.
func (l *Listener) Sessions() []SessionInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	sessions := make([]SessionInfo, 0, len(l.controls))
	for id, control := range l.controls {
		info := SessionInfo{SessionID: id, SiteID: control.SiteID()}
		if machine, ok := l.states[id]; ok {
			info.State = string(machine.State())
		}
		sessions = append(sessions, info)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].SessionID < sessions[j].SessionID
	})
	return sessions
}

func (l *Listener) handleIntent(topic string, payload []byte) {
	decoded, err := codec.DecodeIntent(payload)
	if err != nil {
		l.logger.Error("dropping malformed event", zap.String("topic", topic), zap.Error(err))
		return
	}

	sessionID := decoded.SessionID
	task := l.suspended[sessionID]

	var entries []intentEntry
	var key IntentKey
	if task == nil {
		entries, key = l.registry.resolve(decoded.Intent.IntentName)
		if entries == nil {
			l.logger.Debug("unhandled intent",
				zap.String("intent", decoded.Intent.IntentName),
				zap.String("session_id", sessionID),
			)
			return
		}
	}

	control := l.controls[sessionID]
	if control == nil {
		control = newSessionControl(sessionID, decoded.SiteID, l.pub, l.logger)
		l.controls[sessionID] = control
		l.states[sessionID] = fsm.New()
	}
	ev := buildIntentEvent(decoded, control)

	if task != nil {
		l.logger.Debug("resuming suspended session", zap.String("session_id", sessionID))
		l.transitionState(sessionID, (*fsm.Machine).OnResume)
		task.resume(ev)
		l.runDialogueStep(task, control, sessionID)
		return
	}

	ownerStarted := false
	for i, entry := range entries {
		if entry.dialogue != nil {
			if ownerStarted {
				l.logger.Debug("dialogue handler skipped, session already owned",
					zap.String("intent", decoded.Intent.IntentName),
					zap.String("session_id", sessionID),
					zap.Int("handler_index", i),
				)
				continue
			}
			ownerStarted = true
			l.runDialogueStep(startDialogue(sessionID, entry.dialogue, ev), control, sessionID)
			continue
		}
		l.invokeIntentHandler(entry.plain, ev, key, i)
	}
}

// runDialogueStep advances a dialogue until its next suspension point or
// completion and performs the matching outbound action. A suspension with an
// empty utterance is a protocol violation: the dialogue is aborted and
// nothing is published for that step.
func (l *Listener) runDialogueStep(task *dialogueTask, control *SessionControl, sessionID string) {
	signal := task.step()

	if signal.turn != nil {
		if signal.turn.text == "" {
			l.logger.Error("dialogue produced invalid turn", zap.String("session_id", sessionID))
			delete(l.suspended, sessionID)
			if err := task.abort(ErrProtocolViolation); err != nil {
				l.logger.Error("dialogue handler failed", zap.String("session_id", sessionID), zap.Error(err))
			}
			return
		}
		control.ContinueSession(signal.turn.text, signal.turn.filters...)
		l.suspended[sessionID] = task
		l.transitionState(sessionID, (*fsm.Machine).OnSuspend)
		return
	}

	delete(l.suspended, sessionID)
	if signal.err != nil {
		l.logger.Error("dialogue handler failed", zap.String("session_id", sessionID), zap.Error(signal.err))
		return
	}
	control.EndSession(signal.final)
	l.purgeSession(sessionID)
}

func (l *Listener) transitionState(sessionID string, move func(*fsm.Machine) error) {
	machine, ok := l.states[sessionID]
	if !ok {
		return
	}
	if err := move(machine); err != nil {
		l.logger.Warn("session state transition refused", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (l *Listener) purgeSession(sessionID string) {
	if machine, ok := l.states[sessionID]; ok {
		machine.OnEnd()
	}
	delete(l.controls, sessionID)
	delete(l.states, sessionID)
}

func (l *Listener) handleSessionEnded(topic string, payload []byte) {
	decoded, err := codec.DecodeSessionEnded(payload)
	if err != nil {
		l.logger.Error("dropping malformed event", zap.String("topic", topic), zap.Error(err))
		return
	}

	ev := SessionEnded{
		SessionID:  decoded.SessionID,
		SiteID:     decoded.SiteID,
		CustomData: decoded.CustomData,
		Reason:     decoded.Termination.Reason,
		Error:      decoded.Termination.Error,
	}

	if task, ok := l.suspended[ev.SessionID]; ok {
		delete(l.suspended, ev.SessionID)
		task.resume(ev)
		signal := task.step()
		switch {
		case signal.turn != nil:
			// The session is ending regardless; any further turns are refused.
			if err := task.abort(ErrSessionEnded); err != nil {
				l.logger.Error("ending suspended session failed", zap.String("session_id", ev.SessionID), zap.Error(err))
			}
		case signal.err != nil:
			l.logger.Error("ending suspended session failed", zap.String("session_id", ev.SessionID), zap.Error(signal.err))
		}
	}

	for i, fn := range l.registry.sessionEnded {
		l.invokeSessionEndedHandler(fn, ev, i)
	}

	l.purgeSession(ev.SessionID)
}

func (l *Listener) handleHotword(hotwordID string, topic string, payload []byte) {
	decoded, err := codec.DecodeHotword(payload)
	if err != nil {
		l.logger.Error("dropping malformed event", zap.String("topic", topic), zap.Error(err))
		return
	}

	ev := HotwordDetected{
		HotwordID: hotwordID,
		ModelID:   decoded.ModelID,
		SiteID:    decoded.SiteID,
	}
	for i, fn := range l.registry.hotword {
		l.invokeHotwordHandler(fn, ev, i)
	}
}

func (l *Listener) invokeIntentHandler(fn IntentHandler, ev *IntentDetected, key IntentKey, index int) {
	defer l.recoverHandlerPanic("intent handler", ev.SessionID)
	if err := fn(ev); err != nil {
		l.logger.Error("intent handler failed",
			zap.String("intent", key.Name),
			zap.String("namespace", key.Namespace),
			zap.Int("handler_index", index),
			zap.String("session_id", ev.SessionID),
			zap.Error(err),
		)
	}
}

func (l *Listener) invokeSessionEndedHandler(fn SessionEndedHandler, ev SessionEnded, index int) {
	defer l.recoverHandlerPanic("session ended handler", ev.SessionID)
	if err := fn(ev); err != nil {
		l.logger.Error("session ended handler failed",
			zap.Int("handler_index", index),
			zap.String("session_id", ev.SessionID),
			zap.Error(err),
		)
	}
}

func (l *Listener) invokeHotwordHandler(fn HotwordHandler, ev HotwordDetected, index int) {
	defer l.recoverHandlerPanic("hotword handler", ev.SiteID)
	if err := fn(ev); err != nil {
		l.logger.Error("hotword handler failed",
			zap.Int("handler_index", index),
			zap.String("hotword_id", ev.HotwordID),
			zap.Error(err),
		)
	}
}

func (l *Listener) recoverHandlerPanic(what string, id string) {
	if r := recover(); r != nil {
		l.logger.Error("handler panic recovered",
			zap.String("handler", what),
			zap.String("id", id),
			zap.Any("panic", r),
		)
	}
}

func buildIntentEvent(decoded codec.IntentPayload, control *SessionControl) *IntentDetected {
	// Slot ranges are character offsets, so slicing must not count bytes.
	input := []rune(decoded.Input)
	slots := make(map[string]Slot, len(decoded.Slots))
	for _, slot := range decoded.Slots {
		slots[slot.SlotName] = Slot{
			SlotName:  slot.SlotName,
			RawValue:  slot.RawValue,
			Value:     slot.Value.Value,
			ValueKind: slot.Value.Kind,
			Range:     Range{Start: slot.Range.Start, End: slot.Range.End},
			Entity:    slot.Entity,
			Text:      string(input[slot.Range.Start:slot.Range.End]),
		}
	}
	return &IntentDetected{
		SessionID:   decoded.SessionID,
		SiteID:      decoded.SiteID,
		CustomData:  decoded.CustomData,
		Input:       decoded.Input,
		IntentName:  decoded.Intent.IntentName,
		Probability: decoded.Intent.Probability,
		Slots:       slots,
		Control:     control,
	}
}
