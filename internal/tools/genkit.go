package tools

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// AgentInput is the envelope the NL agent fills when it calls a catalog tool.
// The router injects telegram_id, team_id and chat_type into the prompt so
// the model can echo them back faithfully.
type AgentInput struct {
	TelegramID int64    `json:"telegram_id"`
	TeamID     string   `json:"team_id"`
	ChatType   string   `json:"chat_type"`
	Args       []string `json:"args,omitempty"`
}

// AgentOutput is the user-facing reply string a tool produced.
type AgentOutput struct {
	Reply string `json:"reply"`
}

// RegisterAll exposes every catalog entry as a genkit tool and returns the
// refs for Generate calls. The same validation and panic shield used for
// slash commands applies to agent-initiated calls.
func (r *Registry) RegisterAll(g *genkit.Genkit) []ai.ToolRef {
	refs := make([]ai.ToolRef, 0, len(r.ordered))
	for _, e := range r.Entries() {
		entry := e
		ref := genkit.DefineTool(g, entry.Name, entry.Description,
			func(ctx *ai.ToolContext, input AgentInput) (AgentOutput, error) {
				inv := Invocation{
					TelegramID: input.TelegramID,
					TeamID:     input.TeamID,
					ChatType:   input.ChatType,
					Args:       input.Args,
				}
				return AgentOutput{Reply: r.Dispatch(ctx, entry.Name, inv)}, nil
			},
		)
		refs = append(refs, ref)
	}
	return refs
}
