// Package phrase produces the short decorative strings sprinkled through
// the conversation. Every kind has a static fallback; a remote generator is
// optional and time-boxed, so a slow or absent generator never delays the
// flow.
package phrase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
)

// DefaultTimeout bounds how long a step waits for the remote generator.
const DefaultTimeout = 500 * time.Millisecond

// Phrase kinds used by the session handlers.
const (
	KindGreeting       = "greeting"
	KindItemAdded      = "item_added"
	KindOrderConfirmed = "order_confirmed"
	KindThanks         = "thanks"
	KindGoodbye        = "goodbye"
)

// fallbacks is the static template table. {name}-style placeholders are
// substituted from vars.
var fallbacks = map[string]string{
	KindGreeting:       "Welcome to {restaurant}! What would you like today?",
	KindItemAdded:      "{item} added to your cart.",
	KindOrderConfirmed: "Your order {order} is confirmed. Thank you!",
	KindThanks:         "Thank you!",
	KindGoodbye:        "See you next time!",
}

// Generator wraps an optional remote core.PhraseGenerator with the static
// table. A nil remote means pure static operation.
type Generator struct {
	remote  core.PhraseGenerator
	timeout time.Duration
	log     *zap.Logger
}

func NewGenerator(remote core.PhraseGenerator, timeout time.Duration, log *zap.Logger) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{remote: remote, timeout: timeout, log: log}
}

// Generate returns a phrase for kind. The remote generator gets one
// time-boxed chance; any failure or timeout substitutes the static
// fallback. Unknown kinds fall back to the thanks phrase.
func (g *Generator) Generate(ctx context.Context, kind string, vars map[string]string) string {
	if g.remote != nil {
		reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
		phrase, err := g.remote.Generate(reqCtx, kind, vars)
		cancel()
		if err == nil && strings.TrimSpace(phrase) != "" {
			return phrase
		}
		if err != nil {
			g.log.Debug("phrase generator fell back to static template",
				zap.String("kind", kind), zap.Error(err))
		}
	}
	return Static(kind, vars)
}

// Static renders the fallback template for kind.
func Static(kind string, vars map[string]string) string {
	tpl, ok := fallbacks[kind]
	if !ok {
		tpl = fallbacks[KindThanks]
	}
	out := tpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
