package prompt

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"personabot/internal/domain"
	"personabot/internal/persona"
)

type fakeGateway struct {
	history    []domain.HistoryMessage
	historyErr error
	names      map[string]string
	namesErr   error
	nameCalls  [][]string
}

func (f *fakeGateway) PostMessage(ctx context.Context, channelID, text, displayName, iconEmoji string) error {
	return nil
}

func (f *fakeGateway) RecentMessages(ctx context.Context, channelID string, limit int) ([]domain.HistoryMessage, error) {
	return f.history, f.historyErr
}

func (f *fakeGateway) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	f.nameCalls = append(f.nameCalls, userIDs)
	return f.names, f.namesErr
}

func testAssembler(t *testing.T, gw domain.ChatGateway) *Assembler {
	t.Helper()
	reg, err := persona.NewRegistry([]domain.Persona{{
		Name:         "jack",
		SystemPrompt: "You are Jack, a cheerful pirate.",
		RefMessages:  []string{"Arr, mateys!"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return NewAssembler(gw, reg, 10, logger)
}

func TestAssemble_FullPrompt(t *testing.T) {
	gw := &fakeGateway{
		history: []domain.HistoryMessage{
			{AuthorID: "U1", Text: "good morning"},
			{AuthorID: "B1", Text: "Ahoy!", BotOriginated: true, Username: "Jack"},
		},
		names: map[string]string{"U1": "Alice"},
	}
	a := testAssembler(t, gw)

	got, err := a.Assemble(context.Background(), "jack", "C1")
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"You are Jack, a cheerful pirate.",
		"<<<REFERENCE MESSAGE START>>>\nArr, mateys!\n<<<REFERENCE MESSAGE END>>>",
		"<<<MESSAGE FROM Alice START>>>\ngood morning\n<<<MESSAGE END>>>",
		"<<<MESSAGE FROM Jack START>>>\nAhoy!\n<<<MESSAGE END>>>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q\nprompt:\n%s", want, got)
		}
	}

	// History must read oldest-first.
	if strings.Index(got, "good morning") > strings.Index(got, "Ahoy!") {
		t.Error("history block is not oldest-first")
	}
	// Bot authors keep their declared name and are not looked up.
	if len(gw.nameCalls) != 1 || len(gw.nameCalls[0]) != 1 || gw.nameCalls[0][0] != "U1" {
		t.Errorf("expected one lookup for U1 only, got %v", gw.nameCalls)
	}
}

func TestAssemble_UnknownPersona(t *testing.T) {
	a := testAssembler(t, &fakeGateway{})
	if _, err := a.Assemble(context.Background(), "nobody", "C1"); err == nil {
		t.Error("unknown persona should error")
	}
}

func TestAssemble_HistoryFailureDegrades(t *testing.T) {
	gw := &fakeGateway{historyErr: errors.New("api down")}
	a := testAssembler(t, gw)

	got, err := a.Assemble(context.Background(), "jack", "C1")
	if err != nil {
		t.Fatalf("history failure must not fail assembly: %v", err)
	}
	if strings.Contains(got, "Recent conversation") {
		t.Error("prompt should omit the history block when the fetch fails")
	}
	if !strings.Contains(got, "You are Jack") {
		t.Error("persona description should survive degradation")
	}
}

func TestAssemble_NameFailureFallsBackToIDs(t *testing.T) {
	gw := &fakeGateway{
		history:  []domain.HistoryMessage{{AuthorID: "U7", Text: "hi"}},
		namesErr: errors.New("users.info down"),
	}
	a := testAssembler(t, gw)

	got, err := a.Assemble(context.Background(), "jack", "C1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "<<<MESSAGE FROM U7 START>>>") {
		t.Errorf("expected raw id fallback, got:\n%s", got)
	}
}

func TestAssemble_NoChannelSkipsHistory(t *testing.T) {
	gw := &fakeGateway{history: []domain.HistoryMessage{{AuthorID: "U1", Text: "x"}}}
	a := testAssembler(t, gw)

	got, err := a.Assemble(context.Background(), "jack", "")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "Recent conversation") {
		t.Error("empty channel id should skip the history block")
	}
}
