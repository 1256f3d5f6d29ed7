package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"personabot/internal/domain"
)

// compositeTextPrefix bounds how much message text feeds the fingerprint.
// Messages that differ only past this bound collide; accepted, since this
// path only runs when the platform supplied no native ID at all.
const compositeTextPrefix = 20

// Identity derives the dedup key for an event. Platform-supplied IDs are used
// verbatim when present; otherwise a composite fingerprint is hashed. The
// "composite_" prefix makes the provenance of a key obvious in logs.
func Identity(ev domain.InboundEvent) string {
	if ev.EventID != "" {
		return ev.EventID
	}
	if ev.ClientMsgID != "" {
		return ev.ClientMsgID
	}

	text := ev.Text
	if len(text) > compositeTextPrefix {
		text = text[:compositeTextPrefix]
	}
	parts := strings.Join([]string{ev.ChannelID, ev.Timestamp, ev.UserID, text}, "|")
	sum := sha256.Sum256([]byte(parts))
	return "composite_" + hex.EncodeToString(sum[:])
}
