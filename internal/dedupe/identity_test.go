package dedupe

import (
	"strings"
	"testing"

	"personabot/internal/domain"
)

func TestIdentity_PrefersEventID(t *testing.T) {
	ev := domain.InboundEvent{EventID: "Ev123", ClientMsgID: "cm456", ChannelID: "C1", Text: "hi"}
	if got := Identity(ev); got != "Ev123" {
		t.Errorf("expected Ev123, got %s", got)
	}
}

func TestIdentity_FallsBackToClientMsgID(t *testing.T) {
	ev := domain.InboundEvent{ClientMsgID: "cm456", ChannelID: "C1", Text: "hi"}
	if got := Identity(ev); got != "cm456" {
		t.Errorf("expected cm456, got %s", got)
	}
}

func TestIdentity_CompositeDeterministic(t *testing.T) {
	ev := domain.InboundEvent{ChannelID: "C1", Timestamp: "1700000000.000100", UserID: "U1", Text: "hello world"}
	a := Identity(ev)
	b := Identity(ev)
	if a != b {
		t.Errorf("composite identity not deterministic: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "composite_") {
		t.Errorf("composite identity should carry the composite_ prefix, got %s", a)
	}
}

func TestIdentity_CompositeFieldSensitivity(t *testing.T) {
	base := domain.InboundEvent{ChannelID: "C1", Timestamp: "1.0", UserID: "U1", Text: "hello"}
	variants := []domain.InboundEvent{
		{ChannelID: "C2", Timestamp: "1.0", UserID: "U1", Text: "hello"},
		{ChannelID: "C1", Timestamp: "2.0", UserID: "U1", Text: "hello"},
		{ChannelID: "C1", Timestamp: "1.0", UserID: "U2", Text: "hello"},
		{ChannelID: "C1", Timestamp: "1.0", UserID: "U1", Text: "goodbye"},
	}
	for i, v := range variants {
		if Identity(v) == Identity(base) {
			t.Errorf("variant %d should produce a distinct identity", i)
		}
	}
}

func TestIdentity_TextTruncatedAt20(t *testing.T) {
	// Messages identical through the first 20 characters collide by design.
	long1 := domain.InboundEvent{ChannelID: "C1", Timestamp: "1.0", UserID: "U1", Text: "aaaaaaaaaaaaaaaaaaaa-first"}
	long2 := domain.InboundEvent{ChannelID: "C1", Timestamp: "1.0", UserID: "U1", Text: "aaaaaaaaaaaaaaaaaaaa-second"}
	if Identity(long1) != Identity(long2) {
		t.Error("texts sharing a 20-char prefix should share an identity")
	}
	short := domain.InboundEvent{ChannelID: "C1", Timestamp: "1.0", UserID: "U1", Text: "aaaaaaaaaaaaaaaaaaa-"}
	if Identity(short) == Identity(long1) {
		t.Error("texts differing within the first 20 chars should differ")
	}
}
