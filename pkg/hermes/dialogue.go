package hermes

import (
	"errors"
	"fmt"
)

// ErrSessionEnded is returned from Dialogue.Ask when the session was
// terminated while the dialogue was suspended.
var ErrSessionEnded = errors.New("hermes: session ended")

// ErrProtocolViolation is raised into a dialogue that produced an invalid
// turn, aborting the computation.
var ErrProtocolViolation = errors.New("hermes: invalid dialogue turn")

// Dialogue is the suspension handle passed to a DialogueHandler. Ask yields
// control back to the dispatcher until the next event for the session
// arrives.
type Dialogue struct {
	sessionID string
	resume    chan resumeSignal
	yield     chan yieldSignal
}

type turnValue struct {
	text    string
	filters []string
}

type resumeSignal struct {
	event Event
	err   error
}

type yieldSignal struct {
	turn  *turnValue
	final string
	err   error
}

// SessionID returns the session this dialogue belongs to.
func (d *Dialogue) SessionID() string {
	return d.sessionID
}

// Ask suspends the dialogue, asking the user text and optionally restricting
// the next turn to the given intent filters. It returns the event that
// resumed the session: an *IntentDetected with the user's reply, or a
// SessionEnded if the session was terminated externally. An empty text is a
// protocol violation and aborts the dialogue with ErrProtocolViolation.
func (d *Dialogue) Ask(text string, intentFilters ...string) (Event, error) {
	d.yield <- yieldSignal{turn: &turnValue{text: text, filters: intentFilters}}
	signal := <-d.resume
	if signal.err != nil {
		return nil, signal.err
	}
	return signal.event, nil
}

// dialogueTask is the dispatcher's handle on a running dialogue goroutine.
// The goroutine and the dispatcher alternate strictly: the dispatcher blocks
// in step until the dialogue either suspends in Ask or returns.
type dialogueTask struct {
	dialogue *Dialogue
}

func startDialogue(sessionID string, fn DialogueHandler, ev *IntentDetected) *dialogueTask {
	dialogue := &Dialogue{
		sessionID: sessionID,
		resume:    make(chan resumeSignal),
		yield:     make(chan yieldSignal),
	}
	task := &dialogueTask{dialogue: dialogue}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				dialogue.yield <- yieldSignal{err: fmt.Errorf("dialogue handler panic: %v", r)}
			}
		}()
		final, err := fn(dialogue, ev)
		dialogue.yield <- yieldSignal{final: final, err: err}
	}()
	return task
}

// step blocks until the dialogue suspends or completes.
func (t *dialogueTask) step() yieldSignal {
	return <-t.dialogue.yield
}

// resume delivers the next event into the suspended dialogue.
func (t *dialogueTask) resume(ev Event) {
	t.dialogue.resume <- resumeSignal{event: ev}
}

// abort raises cause into the suspended dialogue and drains it to completion
// so the goroutine cannot leak. Any error the dialogue returns other than
// cause itself is reported to the caller.
func (t *dialogueTask) abort(cause error) error {
	for {
		t.dialogue.resume <- resumeSignal{err: cause}
		signal := t.step()
		if signal.turn != nil {
			// Still suspending after the abort was raised; keep raising.
			continue
		}
		if signal.err != nil && !errors.Is(signal.err, cause) {
			return signal.err
		}
		return nil
	}
}
