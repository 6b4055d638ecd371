package domain

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TeamMember is a person tasks and projects can be assigned to.
type TeamMember struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// Validate requires a display name.
func (m TeamMember) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrMissingField
	}
	return nil
}

// Initials returns up to two upper-case initials of the member's name.
func (m TeamMember) Initials() string {
	var initials []rune
	for _, part := range strings.Fields(m.Name) {
		r, _ := utf8.DecodeRuneInString(part)
		initials = append(initials, unicode.ToUpper(r))
		if len(initials) == 2 {
			break
		}
	}
	return string(initials)
}

// SortMembers orders members by name, as the team listing is presented.
func SortMembers(members []TeamMember) {
	sort.SliceStable(members, func(i, j int) bool { return members[i].Name < members[j].Name })
}

// MemberIndex resolves member ids to members.
type MemberIndex map[string]TeamMember

// IndexMembers builds a lookup table of members by id.
func IndexMembers(members []TeamMember) MemberIndex {
	idx := make(MemberIndex, len(members))
	for _, m := range members {
		idx[m.ID] = m
	}
	return idx
}

// Name returns the member's name or an empty string for dangling references.
func (idx MemberIndex) Name(id string) string {
	if id == "" {
		return ""
	}
	return idx[id].Name
}
