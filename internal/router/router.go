// Package router turns one inbound chat update into one reply: chat
// classification, identity resolution, command extraction, permission gate,
// dispatch, reply composition. The router holds no per-update state; two
// identical updates against identical store state produce identical replies.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/casbin/casbin/v2"

	"github.com/kickai/kickai/internal/bus"
	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/services"
	"github.com/kickai/kickai/internal/shared"
	"github.com/kickai/kickai/internal/teamcache"
	"github.com/kickai/kickai/internal/tools"
)

// commandRe recognizes a slash command at the start of the text; anything
// else is natural language.
var commandRe = regexp.MustCompile(`^/[a-zA-Z_][a-zA-Z0-9_]*(\s.*)?$`)

// Agent is the NL fallback the router hands non-command text to.
type Agent interface {
	Process(ctx context.Context, msg domain.RoutedMessage, role string) (string, error)
}

// Config wires a Router.
type Config struct {
	Catalog *tools.Registry
	Cache   *teamcache.Cache
	Players services.PlayerService
	Members services.TeamMemberService
	Agent   Agent // optional; nil means deterministic fallback only
	Bus     *bus.Bus
	Logger  *slog.Logger
}

// Router is safe for concurrent use across bot workers.
type Router struct {
	catalog  *tools.Registry
	cache    *teamcache.Cache
	players  services.PlayerService
	members  services.TeamMemberService
	agent    Agent
	enforcer *casbin.Enforcer
	dedup    *dedupCache
	bus      *bus.Bus
	logger   *slog.Logger
}

// New builds the router and its permission gate from the tool catalog.
func New(cfg Config) (*Router, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("router: catalog is required")
	}
	enforcer, err := newEnforcer(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		catalog:  cfg.Catalog,
		cache:    cfg.Cache,
		players:  cfg.Players,
		members:  cfg.Members,
		agent:    cfg.Agent,
		enforcer: enforcer,
		dedup:    newDedupCache(),
		bus:      cfg.Bus,
		logger:   logger,
	}, nil
}

// Route processes one update synchronously and returns the reply for the
// origin chat.
func (r *Router) Route(ctx context.Context, msg domain.RoutedMessage) domain.Reply {
	msg.ChatType = r.classifyChat(msg)
	ctx = shared.WithTeamID(ctx, msg.TeamID)
	ctx = shared.WithTelegramID(ctx, msg.TelegramID)
	ctx = shared.WithChatType(ctx, msg.ChatType)

	role := r.resolveRole(ctx, msg)

	text := strings.TrimSpace(msg.Text)
	var reply string
	if commandRe.MatchString(text) {
		reply = r.routeCommand(ctx, msg, role, text)
	} else {
		reply = r.routeNaturalLanguage(ctx, msg, role)
	}

	if r.bus != nil {
		r.bus.Publish(bus.TopicMessageRouted, bus.MessageEvent{
			TeamID:     msg.TeamID,
			TelegramID: msg.TelegramID,
			ChatID:     msg.ChatID,
			ChatType:   msg.ChatType,
			Text:       msg.Text,
			Reply:      reply,
		})
	}
	return domain.Reply{ChatID: msg.ChatID, Text: reply}
}

// classifyChat resolves the chat type by comparing the numeric chat id
// against the team's configured chats. The transport's own chat-type string
// is advisory only; unknown chats count as private.
func (r *Router) classifyChat(msg domain.RoutedMessage) string {
	if r.cache == nil {
		return domain.ChatTypePrivate
	}
	chatID := strconv.FormatInt(msg.ChatID, 10)
	switch chatID {
	case r.cache.MainChatID(msg.TeamID):
		return domain.ChatTypeMain
	case r.cache.LeadershipChatID(msg.TeamID):
		return domain.ChatTypeLeadership
	default:
		return domain.ChatTypePrivate
	}
}

// resolveRole looks the sender up in the registries relevant to the chat:
// the main chat is the players' space, leadership and private chats are the
// club side. Admin membership upgrades the member role.
func (r *Router) resolveRole(ctx context.Context, msg domain.RoutedMessage) string {
	switch msg.ChatType {
	case domain.ChatTypeMain:
		if r.players != nil {
			p, err := r.players.PlayerByTelegramID(ctx, msg.TeamID, msg.TelegramID)
			if err != nil {
				r.logger.Warn("player lookup failed", "team_id", msg.TeamID, "error", err)
			}
			if p != nil {
				return domain.RoleEffectivePlayer
			}
		}
	default:
		if r.members != nil {
			m, err := r.members.MemberByTelegramID(ctx, msg.TeamID, msg.TelegramID)
			if err != nil {
				r.logger.Warn("member lookup failed", "team_id", msg.TeamID, "error", err)
			}
			if m != nil {
				if m.IsAdmin {
					return domain.RoleEffectiveAdmin
				}
				return domain.RoleEffectiveMember
			}
		}
	}
	return domain.RoleEffectiveUnregistered
}

// routeCommand handles a slash command end to end.
func (r *Router) routeCommand(ctx context.Context, msg domain.RoutedMessage, role, text string) string {
	name, tail, _ := strings.Cut(text[1:], " ")
	name = strings.ToLower(name)
	// Strip the @botname suffix groups add on tap-completion.
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}

	if name == "help" {
		return r.helpText(role, msg.ChatType)
	}

	cmd, known := tools.CommandByName(name)
	if !known {
		return fmt.Sprintf("❌ Unknown command /%s.\nType /help to see what you can do here.", name)
	}
	toolName := cmd.ToolFor(msg.ChatType)
	entry, ok := r.catalog.Lookup(toolName)
	if !ok {
		return fmt.Sprintf("❌ /%s is not available right now. Please try again later.", name)
	}

	if !allowed(r.enforcer, role, msg.ChatType, toolName) {
		if r.bus != nil {
			r.bus.Publish(bus.TopicMessageDenied, bus.MessageEvent{
				TeamID:     msg.TeamID,
				TelegramID: msg.TelegramID,
				ChatID:     msg.ChatID,
				ChatType:   msg.ChatType,
				Text:       msg.Text,
			})
		}
		return deniedText(name, entry, msg.ChatType)
	}

	if entry.Mutating {
		if cached, hit := r.dedup.lookup(msg.TeamID, msg.TelegramID, text); hit {
			r.logger.Info("duplicate command deduplicated", "team_id", msg.TeamID, "command", name)
			return cached
		}
	}

	inv := tools.Invocation{
		TelegramID: msg.TelegramID,
		TeamID:     msg.TeamID,
		ChatType:   msg.ChatType,
		Args:       tools.SplitArgs(tail),
	}
	reply := r.catalog.Dispatch(ctx, toolName, inv)

	if entry.Mutating {
		r.dedup.remember(msg.TeamID, msg.TelegramID, text, reply)
	}
	return reply
}

// deniedText is the templated access-denied reply naming the missing
// capability and where it applies.
func deniedText(command string, entry tools.Entry, chatType string) string {
	minRole, ok := entry.MinRoleFor(chatType)
	if !ok {
		// The tool exists but not in this chat; point at the right one.
		where := entry.ChatTypes
		chat := "the leadership chat"
		if len(where) > 0 && where[0] != domain.ChatTypeLeadership {
			chat = "the " + where[0] + " chat"
		}
		return fmt.Sprintf("❌ Permission Denied\nYou don't have permission to use /%s here.\n/%s is only available in %s.",
			command, command, chat)
	}
	return fmt.Sprintf("❌ Permission Denied\nYou don't have permission to use /%s here.\nThis command needs %s access in the %s chat. Contact your team leadership if you think this is wrong.",
		command, minRole, chatType)
}

// routeNaturalLanguage hands free text to the agent, falling back to a
// deterministic pointer at /help when the agent is unavailable.
func (r *Router) routeNaturalLanguage(ctx context.Context, msg domain.RoutedMessage, role string) string {
	if r.agent != nil {
		reply, err := r.agent.Process(ctx, msg, role)
		if err == nil && strings.TrimSpace(reply) != "" {
			return reply
		}
		if err != nil {
			r.logger.Warn("agent processing failed", "team_id", msg.TeamID, "error", err)
		}
	}
	return "🤖 I couldn't work that one out.\nType /help to see the commands available to you here."
}
