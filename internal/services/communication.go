package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Sender is the outbound transport surface the communication service needs:
// the fleet manager implements it by routing to the team's bot worker.
type Sender interface {
	Send(ctx context.Context, teamID string, chatID int64, text string) error
}

// ChatDirectory resolves the team's well-known chats; the team cache
// implements it.
type ChatDirectory interface {
	MainChatID(teamID string) string
	LeadershipChatID(teamID string) string
}

// Communications is the Sender-backed CommunicationService.
type Communications struct {
	sender Sender
	chats  ChatDirectory
	logger *slog.Logger
}

// NewCommunications creates the communication service.
func NewCommunications(sender Sender, chats ChatDirectory, logger *slog.Logger) *Communications {
	if logger == nil {
		logger = slog.Default()
	}
	return &Communications{sender: sender, chats: chats, logger: logger}
}

// SendMessage delivers text to an explicit chat.
func (s *Communications) SendMessage(ctx context.Context, teamID string, chatID int64, text string) error {
	if text == "" {
		return fmt.Errorf("send message: text is required")
	}
	if err := s.sender.Send(ctx, teamID, chatID, text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendAnnouncement delivers text to the team's main chat.
func (s *Communications) SendAnnouncement(ctx context.Context, teamID, text string) error {
	chatID, err := s.resolveChat(s.chats.MainChatID(teamID), "main", teamID)
	if err != nil {
		return err
	}
	return s.SendMessage(ctx, teamID, chatID, text)
}

// SendToLeadership delivers text to the team's leadership chat.
func (s *Communications) SendToLeadership(ctx context.Context, teamID, text string) error {
	chatID, err := s.resolveChat(s.chats.LeadershipChatID(teamID), "leadership", teamID)
	if err != nil {
		return err
	}
	return s.SendMessage(ctx, teamID, chatID, text)
}

// SendPoll renders a poll as a formatted main-chat message. The transport
// has no native poll primitive; the numbered-option text form is the
// portable rendering.
func (s *Communications) SendPoll(ctx context.Context, teamID, question string, options []string) error {
	if question == "" {
		return fmt.Errorf("send poll: question is required")
	}
	if len(options) < 2 {
		return fmt.Errorf("send poll: at least two options required")
	}
	var b strings.Builder
	b.WriteString("📊 ")
	b.WriteString(question)
	for i, opt := range options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, opt)
	}
	return s.SendAnnouncement(ctx, teamID, b.String())
}

func (s *Communications) resolveChat(raw, kind, teamID string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("send: team %s has no %s chat configured", teamID, kind)
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("send: team %s %s chat id %q is not numeric", teamID, kind, raw)
	}
	return chatID, nil
}
