package router

import (
	"fmt"
	"strings"

	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/tools"
)

// helpText renders the context-aware /help body: only the commands the
// sender may actually use in this chat, with registration guidance for
// unregistered users.
func (r *Router) helpText(role, chatType string) string {
	var b strings.Builder
	b.WriteString("🤖 KICKAI Commands\n")

	switch role {
	case domain.RoleEffectiveUnregistered:
		b.WriteString("You are an Unregistered User here. Please contact your team leadership for an invite link to register.\n")
	case domain.RoleEffectivePlayer:
		b.WriteString("You are registered as a Player.\n")
	case domain.RoleEffectiveMember:
		b.WriteString("You are registered as a Team Member.\n")
	case domain.RoleEffectiveAdmin:
		b.WriteString("You are a team Administrator.\n")
	}

	listed := 0
	for _, cmd := range tools.Commands() {
		if cmd.Name == "help" {
			fmt.Fprintf(&b, "%s — %s\n", cmd.Usage, cmd.Help)
			listed++
			continue
		}
		toolName := cmd.ToolFor(chatType)
		entry, ok := r.catalog.Lookup(toolName)
		if !ok {
			continue
		}
		minRole, available := entry.MinRoleFor(chatType)
		if !available || !tools.RoleAllows(role, minRole) {
			continue
		}
		fmt.Fprintf(&b, "%s — %s\n", cmd.Usage, cmd.Help)
		listed++
	}

	if listed <= 1 {
		b.WriteString("No commands are available to you in this chat yet.\n")
	}
	b.WriteString("Anything else, just ask in plain language.")
	return b.String()
}
