// Package fallback answers sessions the NLU could not match with a spoken
// apology, so the user is not left with silence.
package fallback

import (
	"go.uber.org/zap"

	"github.com/kardia-ai/skillbus/internal/transport/hermes/codec"
	"github.com/kardia-ai/skillbus/pkg/hermes"
)

// DefaultText is spoken when a session ends without a recognized intent.
const DefaultText = "Sorry, I didn't understand that."

// Skill represents a skill.
type Skill struct {
	pub    hermes.Publisher
	logger *zap.Logger
	text   string
}

// New executes the new function. An empty text selects DefaultText.
func New(pub hermes.Publisher, text string, logger *zap.Logger) *Skill {
	if logger == nil {
		logger = zap.NewNop()
	}
	if text == "" {
		text = DefaultText
	}
	return &Skill{pub: pub, logger: logger, text: text}
}

// Register executes the register method.
func (s *Skill) Register(registry *hermes.Registry) {
	registry.OnSessionEnded(s.onSessionEnded)
}

func (s *Skill) onSessionEnded(ev hermes.SessionEnded) error {
	if ev.Reason != hermes.ReasonIntentNotRecognized {
		return nil
	}
	payload, err := codec.EncodeSay(ev.SessionID, ev.SiteID, s.text)
	if err != nil {
		return err
	}
	s.logger.Debug("speaking fallback", zap.String("site_id", ev.SiteID))
	return s.pub.Publish(codec.TopicSay, payload)
}
