package chat

import (
	"fmt"
	"strings"

	"github.com/i474232898/city-env-alerts/internal/profile"
)

// HistoryLimit is how many of the most recent turns are sent upstream.
const HistoryLimit = 5

// Role is the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation owned by the caller.
type Turn struct {
	Role Role   `json:"role" validate:"required,oneof=user assistant"`
	Text string `json:"text"`
}

// RecentTurns returns the last HistoryLimit turns of history.
func RecentTurns(history []Turn) []Turn {
	if len(history) <= HistoryLimit {
		return history
	}
	return history[len(history)-HistoryLimit:]
}

const roleDescription = "You are a friendly civic assistant for residents of Indianapolis. " +
	"You help with local services, environmental conditions, health precautions and everyday questions. " +
	"Be concise, practical and accurate; say so when you are unsure."

// SystemInstruction builds the instruction shared by both backends from the
// bounded history suffix and the caller's profile. Output is deterministic.
func SystemInstruction(history []Turn, uc profile.UserContext) string {
	var b strings.Builder
	b.WriteString(roleDescription)

	b.WriteString("\n\nResident profile:\n")
	fmt.Fprintf(&b, "- Name: %s\n", orNotProvided(uc.Name))
	fmt.Fprintf(&b, "- Location: %s\n", orNotProvided(uc.Address))
	fmt.Fprintf(&b, "- Email: %s\n", orNotProvided(uc.Email))
	fmt.Fprintf(&b, "- Phone: %s\n", orNotProvided(uc.Phone))
	fmt.Fprintf(&b, "- Blood group: %s\n", orNotProvided(uc.BloodGroup))
	fmt.Fprintf(&b, "- Allergies: %s\n", profile.ListOrNone(uc.Allergies))
	fmt.Fprintf(&b, "- Medications: %s\n", profile.ListOrNone(uc.Medications))
	fmt.Fprintf(&b, "- Medical conditions: %s\n", profile.ListOrNone(uc.Conditions))

	recent := RecentTurns(history)
	if len(recent) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, t := range recent {
			speaker := "User"
			if t.Role == RoleAssistant {
				speaker = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", speaker, t.Text)
		}
	}

	return b.String()
}

func orNotProvided(s string) string {
	if strings.TrimSpace(s) == "" {
		return "not provided"
	}
	return s
}
