package chat

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/i474232898/city-env-alerts/internal/profile"
)

func TestRecentTurns(t *testing.T) {
	var history []Turn
	for i := 0; i < 8; i++ {
		history = append(history, Turn{Role: RoleUser, Text: fmt.Sprintf("m%d", i)})
	}

	recent := RecentTurns(history)
	assert.Len(t, recent, HistoryLimit)
	assert.Equal(t, "m3", recent[0].Text)
	assert.Equal(t, "m7", recent[4].Text)

	assert.Len(t, RecentTurns(history[:2]), 2)
}

func TestSystemInstruction(t *testing.T) {
	uc := profile.UserContext{
		Name:       "Sam Rivera",
		Address:    "Fountain Square, Indianapolis",
		Email:      "sam@example.com",
		BloodGroup: "AB-",
		Allergies:  []string{"peanuts", "ragweed"},
	}
	history := []Turn{
		{Role: RoleUser, Text: "old question"},
		{Role: RoleAssistant, Text: "old answer"},
		{Role: RoleUser, Text: "q2"},
		{Role: RoleAssistant, Text: "a2"},
		{Role: RoleUser, Text: "q3"},
		{Role: RoleAssistant, Text: "a3"},
	}

	got := SystemInstruction(history, uc)

	assert.Contains(t, got, "- Name: Sam Rivera")
	assert.Contains(t, got, "- Blood group: AB-")
	assert.Contains(t, got, "- Allergies: peanuts, ragweed")
	assert.Contains(t, got, "- Phone: not provided")
	assert.Contains(t, got, "- Medications: none reported")
	assert.NotContains(t, got, "old question", "only the last five turns are included")
	assert.Contains(t, got, "Assistant: old answer")
	assert.True(t, strings.HasSuffix(got, "Assistant: a3\n"))

	assert.Equal(t, got, SystemInstruction(history, uc), "construction is deterministic")
}
