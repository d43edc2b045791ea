package services

import (
	"context"
	"strings"
	"testing"
)

type recordingSender struct {
	teamID string
	chatID int64
	texts  []string
}

func (r *recordingSender) Send(_ context.Context, teamID string, chatID int64, text string) error {
	r.teamID = teamID
	r.chatID = chatID
	r.texts = append(r.texts, text)
	return nil
}

type staticChats struct{ main, leadership string }

func (s staticChats) MainChatID(string) string       { return s.main }
func (s staticChats) LeadershipChatID(string) string { return s.leadership }

func TestSendAnnouncement(t *testing.T) {
	sender := &recordingSender{}
	s := NewCommunications(sender, staticChats{main: "-100111", leadership: "-100222"}, quietLogger())

	if err := s.SendAnnouncement(context.Background(), "KTI", "Training moved to 7pm"); err != nil {
		t.Fatalf("expected announcement to succeed, got %v", err)
	}
	if sender.chatID != -100111 {
		t.Fatalf("expected main chat, got %d", sender.chatID)
	}

	if err := s.SendToLeadership(context.Background(), "KTI", "Committee meeting"); err != nil {
		t.Fatal(err)
	}
	if sender.chatID != -100222 {
		t.Fatalf("expected leadership chat, got %d", sender.chatID)
	}
}

func TestSendAnnouncementNoChat(t *testing.T) {
	s := NewCommunications(&recordingSender{}, staticChats{}, quietLogger())
	if err := s.SendAnnouncement(context.Background(), "KTI", "hello"); err == nil {
		t.Fatal("expected missing main chat to fail")
	}
}

func TestSendPoll(t *testing.T) {
	sender := &recordingSender{}
	s := NewCommunications(sender, staticChats{main: "-100111"}, quietLogger())

	if err := s.SendPoll(context.Background(), "KTI", "Who is in for Saturday?", []string{"Yes", "No"}); err != nil {
		t.Fatal(err)
	}
	got := sender.texts[len(sender.texts)-1]
	if !strings.HasPrefix(got, "📊 Who is in for Saturday?") {
		t.Fatalf("unexpected poll rendering %q", got)
	}
	if !strings.Contains(got, "1. Yes") || !strings.Contains(got, "2. No") {
		t.Fatalf("expected numbered options, got %q", got)
	}

	if err := s.SendPoll(context.Background(), "KTI", "Q", []string{"only one"}); err == nil {
		t.Fatal("expected single-option poll to fail")
	}
}
