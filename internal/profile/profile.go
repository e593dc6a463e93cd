// Package profile holds the personalization fields a caller supplies with each
// request. The service never persists them.
package profile

import (
	"sort"
	"strings"
)

// UserContext is passed to every provider and AI backend. All fields are optional.
type UserContext struct {
	Name        string   `json:"name,omitempty"`
	Address     string   `json:"address,omitempty"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	BloodGroup  string   `json:"bloodGroup,omitempty"`
	Allergies   []string `json:"allergies,omitempty"`
	Medications []string `json:"medications,omitempty"`
	Conditions  []string `json:"conditions,omitempty"`
}

// CacheKey renders the fields that shape an environmental snapshot as a
// deterministic string. List order does not matter.
func (u UserContext) CacheKey() string {
	return strings.Join([]string{
		strings.ToLower(strings.TrimSpace(u.BloodGroup)),
		joinSorted(u.Allergies),
		joinSorted(u.Medications),
		joinSorted(u.Conditions),
	}, "|")
}

// IsEmpty reports whether no personalization was provided.
func (u UserContext) IsEmpty() bool {
	return u.Name == "" && u.Address == "" && u.Email == "" && u.Phone == "" &&
		u.BloodGroup == "" && len(u.Allergies) == 0 && len(u.Medications) == 0 && len(u.Conditions) == 0
}

// ListOrNone joins items for prompt text, or returns "none reported".
func ListOrNone(items []string) string {
	cleaned := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			cleaned = append(cleaned, it)
		}
	}
	if len(cleaned) == 0 {
		return "none reported"
	}
	return strings.Join(cleaned, ", ")
}

func joinSorted(items []string) string {
	cp := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.ToLower(strings.TrimSpace(it)); it != "" {
			cp = append(cp, it)
		}
	}
	sort.Strings(cp)
	return strings.Join(cp, ",")
}
