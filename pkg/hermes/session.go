package hermes

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kardia-ai/skillbus/internal/transport/hermes/codec"
)

// Publisher publishes a payload to a bus topic. The MQTT transport satisfies
// it; tests substitute an in-memory fake.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(topic string, payload []byte) error

// Publish executes the publish method.
func (f PublisherFunc) Publish(topic string, payload []byte) error {
	return f(topic, payload)
}

// SessionControl is the per-session action gateway. Once the session has been
// ended, further actions are logged and dropped rather than failing the
// caller.
type SessionControl struct {
	sessionID string
	siteID    string
	pub       Publisher
	logger    *zap.Logger

	mu    sync.Mutex
	ended bool
}

func newSessionControl(sessionID string, siteID string, pub Publisher, logger *zap.Logger) *SessionControl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionControl{
		sessionID: sessionID,
		siteID:    siteID,
		pub:       pub,
		logger:    logger,
	}
}

// SessionID returns the session this gateway controls.
func (c *SessionControl) SessionID() string {
	return c.sessionID
}

// SiteID returns the site the session originated from.
func (c *SessionControl) SiteID() string {
	return c.siteID
}

// Ended reports whether the session has been ended through this gateway.
func (c *SessionControl) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

// ContinueSession asks the dialogue manager to keep the session open and
// speak text, optionally restricting the next turn to the given intents.
func (c *SessionControl) ContinueSession(text string, intentFilters ...string) {
	if c.refuseIfEnded("continueSession") {
		return
	}
	payload, err := codec.EncodeContinueSession(c.sessionID, text, intentFilters)
	if err != nil {
		c.logger.Error("encode continueSession failed", zap.String("session_id", c.sessionID), zap.Error(err))
		return
	}
	c.publish(codec.TopicContinueSession, payload)
}

// Say publishes a TTS announcement for the session. It never transitions
// session state.
func (c *SessionControl) Say(text string) {
	if c.refuseIfEnded("say") {
		return
	}
	payload, err := codec.EncodeSay(c.sessionID, c.siteID, text)
	if err != nil {
		c.logger.Error("encode say failed", zap.String("session_id", c.sessionID), zap.Error(err))
		return
	}
	c.publish(codec.TopicSay, payload)
}

// EndSession terminates the session, speaking text first when non-empty.
// Subsequent calls are no-ops.
func (c *SessionControl) EndSession(text string) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		c.logger.Error("session action on ended session",
			zap.String("session_id", c.sessionID),
			zap.String("action", "endSession"),
		)
		return
	}
	c.ended = true
	c.mu.Unlock()

	payload, err := codec.EncodeEndSession(c.sessionID, text)
	if err != nil {
		c.logger.Error("encode endSession failed", zap.String("session_id", c.sessionID), zap.Error(err))
		return
	}
	c.publish(codec.TopicEndSession, payload)
}

func (c *SessionControl) refuseIfEnded(action string) bool {
	c.mu.Lock()
	ended := c.ended
	c.mu.Unlock()
	if ended {
		c.logger.Error("session action on ended session",
			zap.String("session_id", c.sessionID),
			zap.String("action", action),
		)
	}
	return ended
}

func (c *SessionControl) publish(topic string, payload []byte) {
	if err := c.pub.Publish(topic, payload); err != nil {
		c.logger.Error("session action publish failed",
			zap.String("session_id", c.sessionID),
			zap.String("topic", topic),
			zap.Error(err),
		)
	}
}
