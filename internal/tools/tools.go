// Package tools holds the command catalog: every operation a user can invoke
// through a slash command or the NL agent, with its permission requirements,
// parameter contract and handler. The catalog is the single source of truth
// for dispatch, permission policy generation and /help.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Effective role ranks. Permission is monotonic: everything a lower role may
// do, every higher role may do, except where a per-chat override narrows it.
var roleRank = map[string]int{
	"unregistered": 0,
	"player":       1,
	"team_member":  2,
	"admin":        3,
}

// RoleAllows reports whether userRole meets minRole in the hierarchy.
func RoleAllows(userRole, minRole string) bool {
	return roleRank[userRole] >= roleRank[minRole]
}

// Invocation is the canonical tool call envelope. Raw carries extra
// parameters the NL agent extracted beyond positional args.
type Invocation struct {
	TelegramID int64
	TeamID     string
	ChatType   string
	Args       []string
	Raw        map[string]any
}

// Arg returns the positional argument at i or "".
func (inv Invocation) Arg(i int) string {
	if i < len(inv.Args) {
		return inv.Args[i]
	}
	return ""
}

// Handler executes a tool. It always returns a user-facing string; errors
// never cross this boundary.
type Handler func(ctx context.Context, inv Invocation) string

// Param declares one positional parameter of a tool.
type Param struct {
	Name     string
	Required bool
}

// Entry is one catalog tool.
type Entry struct {
	Name        string
	Description string
	MinRole     string
	ChatTypes   []string          // allowed chat types; empty means all
	RoleByChat  map[string]string // per-chat min-role override
	Mutating    bool
	Params      []Param
	Handler     Handler
}

// MinRoleFor returns the role required in the given chat type, or ok=false
// when the tool is not available there at all.
func (e Entry) MinRoleFor(chatType string) (string, bool) {
	if len(e.ChatTypes) > 0 {
		allowed := false
		for _, ct := range e.ChatTypes {
			if ct == chatType {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", false
		}
	}
	if override, ok := e.RoleByChat[chatType]; ok {
		return override, true
	}
	return e.MinRole, true
}

// ServiceSource resolves a registered service by name; the service registry
// implements it.
type ServiceSource interface {
	Get(name string) (any, error)
}

// Registry is the tool catalog.
type Registry struct {
	entries  map[string]Entry
	ordered  []string
	services ServiceSource
}

// NewRegistry creates an empty catalog over a service source.
func NewRegistry(services ServiceSource) *Registry {
	return &Registry{
		entries:  make(map[string]Entry),
		services: services,
	}
}

// Add registers a catalog entry. Later entries with a duplicate name panic:
// the catalog is assembled once at startup from static definitions.
func (r *Registry) Add(e Entry) {
	if e.Name == "" || e.Handler == nil {
		panic("tools: entry needs a name and a handler")
	}
	if _, dup := r.entries[e.Name]; dup {
		panic("tools: duplicate entry " + e.Name)
	}
	r.entries[e.Name] = e
	r.ordered = append(r.ordered, e.Name)
}

// Lookup returns the entry for a tool name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Entries returns every catalog entry in registration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.ordered))
	for _, name := range r.ordered {
		out = append(out, r.entries[name])
	}
	return out
}

// Names returns every tool name sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch validates the invocation and runs the named tool. Every outcome is
// a string; panics inside handlers are converted to a ❌ reply.
func (r *Registry) Dispatch(ctx context.Context, name string, inv Invocation) (reply string) {
	e, ok := r.entries[name]
	if !ok {
		return fmt.Sprintf("❌ Unknown operation: %s", name)
	}
	if msg := validateInvocation(e, inv); msg != "" {
		return msg
	}

	defer func() {
		if rec := recover(); rec != nil {
			reply = fmt.Sprintf("❌ %s failed unexpectedly. Please try again later.", e.Name)
		}
	}()
	return e.Handler(ctx, inv)
}

// validateInvocation checks the canonical envelope fields first, then the
// tool's declared parameters, returning the first failure as a ❌ string.
func validateInvocation(e Entry, inv Invocation) string {
	if inv.TelegramID <= 0 {
		return "❌ telegram_id is required"
	}
	if inv.TeamID == "" {
		return "❌ team_id is required"
	}
	if inv.ChatType == "" {
		return "❌ chat_type is required"
	}
	for i, p := range e.Params {
		if p.Required && strings.TrimSpace(inv.Arg(i)) == "" {
			return fmt.Sprintf("❌ %s is required", p.Name)
		}
	}
	return ""
}

// service resolves a named service from the registry and asserts its type.
// A missing or mistyped service yields the templated unavailable string.
func service[T any](r *Registry, name, display string) (T, string) {
	var zero T
	instance, err := r.services.Get(name)
	if err != nil {
		return zero, fmt.Sprintf("❌ %s is unavailable. Please try again later.", display)
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Sprintf("❌ %s is unavailable. Please try again later.", display)
	}
	return typed, ""
}

// SplitArgs splits a command tail into arguments, honoring double-quoted
// spans so `/addplayer "Test Player" "+447..."` yields two args.
func SplitArgs(tail string) []string {
	var args []string
	var b strings.Builder
	inQuote := false
	flush := func() {
		if b.Len() > 0 {
			args = append(args, b.String())
			b.Reset()
		}
	}
	for _, r := range tail {
		switch {
		case r == '"':
			if inQuote {
				args = append(args, b.String())
				b.Reset()
			} else {
				flush()
			}
			inQuote = !inQuote
		case !inQuote && (r == ' ' || r == '\t' || r == '\n'):
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return args
}
