package agent

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"qwery/internal/ai"
	"qwery/internal/metrics"
)

const (
	DefaultTitle  = "New Conversation"
	maxTitleRunes = 80
)

// TitleGenerator names a conversation from its first message.
type TitleGenerator struct {
	llm     ai.ChatClient
	llmCfg  ai.ChatConfig
	timeout time.Duration
	logger  zerolog.Logger
}

func NewTitleGenerator(llm ai.ChatClient, llmCfg ai.ChatConfig, timeout time.Duration, logger zerolog.Logger) *TitleGenerator {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &TitleGenerator{llm: llm, llmCfg: llmCfg, timeout: timeout, logger: logger}
}

type titleResult struct {
	title string
	err   error
}

// Generate races the model against the timeout. On timeout or failure it
// returns DefaultTitle and cancels the pending request.
func (g *TitleGenerator) Generate(ctx context.Context, seed string) string {
	seed = strings.TrimSpace(seed)
	if seed == "" || g.llm == nil {
		return DefaultTitle
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan titleResult, 1)
	go func() {
		title, err := g.llm.Complete(callCtx, g.llmCfg, []ai.ChatMessage{
			{Role: "system", Content: "Write a short title (at most six words) for a conversation that starts with the user's message. Reply with the title only."},
			{Role: "user", Content: seed},
		})
		done <- titleResult{title: title, err: err}
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			g.logger.Debug().Err(res.err).Msg("title generation failed")
			metrics.TitleFallbacksTotal.Inc()
			return DefaultTitle
		}
		if title := cleanTitle(res.title); title != "" {
			return title
		}
	case <-timer.C:
		g.logger.Debug().Dur("timeout", g.timeout).Msg("title generation timed out")
	case <-ctx.Done():
	}
	metrics.TitleFallbacksTotal.Inc()
	return DefaultTitle
}

func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	title = strings.TrimPrefix(title, "Title:")
	title = strings.Trim(strings.TrimSpace(title), `"'*#`)
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes])
	}
	return strings.TrimSpace(title)
}
