package dialogue

import (
	"strings"

	"github.com/mb0/glob"
	"github.com/rs/zerolog/log"
)

// RoleRule maps speakers matching Pattern (glob syntax, case-insensitive) to Role.
type RoleRule struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Role    Role   `yaml:"role" json:"role"`
}

// RoleTable derives a Turn's role from its speaker. Rules are evaluated in
// order, the first match wins and unmatched speakers fall back to Default.
type RoleTable struct {
	Rules   []RoleRule `yaml:"rules" json:"rules"`
	Default Role       `yaml:"default" json:"default"`
}

// DefaultRoleTable knows the three role tokens and treats the machine name as
// the assistant. Everybody else is a user.
func DefaultRoleTable(machineName string) RoleTable {
	rules := []RoleRule{
		{Pattern: string(RoleSystem), Role: RoleSystem},
		{Pattern: string(RoleUser), Role: RoleUser},
		{Pattern: string(RoleAssistant), Role: RoleAssistant},
	}
	if machineName != "" {
		rules = append(rules, RoleRule{Pattern: machineName, Role: RoleAssistant})
	}
	return RoleTable{
		Rules:   rules,
		Default: RoleUser,
	}
}

// WithRule returns a copy of the table with the rule inserted before the existing ones.
func (rt RoleTable) WithRule(pattern string, role Role) RoleTable {
	rules := make([]RoleRule, 0, len(rt.Rules)+1)
	rules = append(rules, RoleRule{Pattern: pattern, Role: role})
	rules = append(rules, rt.Rules...)
	return RoleTable{Rules: rules, Default: rt.Default}
}

func (rt RoleTable) RoleFor(speaker string) Role {
	s := strings.ToLower(strings.TrimSpace(speaker))
	for _, rule := range rt.Rules {
		if !rule.Role.IsValid() {
			continue
		}
		matching, err := glob.Match(strings.ToLower(rule.Pattern), s)
		if err != nil {
			log.Warn().Err(err).Str("pattern", rule.Pattern).Msg("invalid role pattern")
			continue
		}
		if matching {
			return rule.Role
		}
	}
	if rt.Default.IsValid() {
		return rt.Default
	}
	return RoleUser
}

// Turn builds a turn whose role is derived from the speaker.
func (rt RoleTable) Turn(speaker string, content string) Turn {
	return NewTurn(speaker, rt.RoleFor(speaker), content)
}

// NormalizeReplyRole maps the role string declared by a model reply onto the
// internal roles. Absent or unknown roles are treated as the assistant.
func NormalizeReplyRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "system", "developer":
		return RoleSystem
	case "user", "human":
		return RoleUser
	default:
		return RoleAssistant
	}
}
