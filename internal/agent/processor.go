// Package agent is the natural-language layer: free text that is not a
// slash command is handed to an LLM that can call the same tool catalog the
// commands use. The layer degrades to a deterministic fallback when the
// model is unreachable.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai"

	"github.com/kickai/kickai/internal/config"
	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/tools"
)

// Processor answers natural-language messages with the tool catalog
// available for autonomous use. Safe for concurrent use.
type Processor struct {
	g        *genkit.Genkit
	refs     []ai.ToolRef
	model    string
	maxTurns int
	llmOn    bool
	logger   *slog.Logger
}

// NewProcessor initializes genkit against the configured Ollama server.
// Ollama speaks the OpenAI-compatible protocol on /v1, so the generic
// compatible plugin carries it. A missing base URL yields a processor that
// always reports failure; the router falls back deterministically.
func NewProcessor(ctx context.Context, cfg config.AISettings, catalog *tools.Registry, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.OllamaBaseURL), "/")
	var g *genkit.Genkit
	llmOn := false
	if baseURL != "" {
		plugin := &compat_oai.OpenAICompatible{
			Provider: "ollama",
			// Ollama ignores the key but the client requires one.
			APIKey:  "ollama",
			BaseURL: baseURL + "/v1",
		}
		g = genkit.Init(ctx, genkit.WithPlugins(plugin))
		llmOn = true
		logger.Info("nl agent initialized", "provider", cfg.Provider, "model", cfg.Model, "base_url", baseURL)
	} else {
		g = genkit.Init(ctx)
		logger.Warn("OLLAMA_BASE_URL missing; natural language uses the deterministic fallback")
	}

	var refs []ai.ToolRef
	if catalog != nil {
		refs = catalog.RegisterAll(g)
	}

	return &Processor{
		g:        g,
		refs:     refs,
		model:    strings.TrimSpace(cfg.Model),
		maxTurns: 3,
		llmOn:    llmOn,
		logger:   logger,
	}
}

// Available reports whether the model backend is configured.
func (p *Processor) Available() bool {
	return p.llmOn
}

// Process generates a reply for one free-text message. The caller's identity
// envelope is pinned in the system prompt so tool calls carry it faithfully.
func (p *Processor) Process(ctx context.Context, msg domain.RoutedMessage, role string) (string, error) {
	trimmed := strings.TrimSpace(msg.Text)
	if trimmed == "" {
		return "", fmt.Errorf("empty message")
	}
	if !p.llmOn {
		return "", fmt.Errorf("nl agent not configured")
	}

	systemPrompt := p.systemPrompt(msg, role)
	// Escape % so ai.WithSystem's formatting cannot corrupt the prompt.
	systemPrompt = strings.ReplaceAll(systemPrompt, "%", "%%")

	opts := []ai.GenerateOption{
		ai.WithModelName(p.model),
		ai.WithSystem(systemPrompt),
		ai.WithPrompt(trimmed),
	}
	if len(p.refs) > 0 {
		opts = append(opts, ai.WithTools(p.refs...))
		opts = append(opts, ai.WithMaxTurns(p.maxTurns))
	}

	resp, err := genkit.Generate(ctx, p.g, opts...)
	if err != nil {
		p.logger.Warn("generate failed", "team_id", msg.TeamID, "error", err)
		if len(p.refs) > 0 {
			// Some local models reject tool schemas; answer without them.
			resp, err = genkit.Generate(ctx, p.g,
				ai.WithModelName(p.model),
				ai.WithSystem(systemPrompt),
				ai.WithPrompt(trimmed),
			)
			if err != nil {
				return "", fmt.Errorf("generate (no tools): %w", err)
			}
			return resp.Text(), nil
		}
		return "", fmt.Errorf("generate: %w", err)
	}
	return resp.Text(), nil
}

// systemPrompt pins the caller envelope and the assistant's remit.
func (p *Processor) systemPrompt(msg domain.RoutedMessage, role string) string {
	var b strings.Builder
	b.WriteString("You are KICKAI, the assistant for an amateur football team. ")
	b.WriteString("Answer questions about players, team members, matches and attendance. ")
	b.WriteString("Use the available tools to look information up; never invent data. ")
	b.WriteString("When a tool returns a formatted reply, pass it through unchanged.\n\n")
	b.WriteString("When calling any tool, always set these exact values:\n")
	fmt.Fprintf(&b, "- telegram_id: %d\n", msg.TelegramID)
	fmt.Fprintf(&b, "- team_id: %s\n", msg.TeamID)
	fmt.Fprintf(&b, "- chat_type: %s\n", msg.ChatType)
	fmt.Fprintf(&b, "\nThe sender's role is %q. Do not offer actions their role cannot perform. ", role)
	b.WriteString("Keep replies short and plain; suggest /help when the request is out of scope.")
	return b.String()
}
