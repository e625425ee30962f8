package matching

import (
	"strings"

	"github.com/harmony-community/harmony-matcher/internal/event"
)

const maxBioRunes = 200

// FormatProfile renders an attendee as labeled lines for prompting. Empty
// optional fields are omitted so the model never sees blank labels. Pure and
// deterministic.
func FormatProfile(a *event.Attendee) string {
	parts := []string{"Name: " + a.Name}

	appendField := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			parts = append(parts, label+": "+value)
		}
	}

	appendField("Title", a.Title)
	appendField("Company", a.Company)
	appendField("Industry", a.Industry)
	appendField("Location", a.Location)
	appendField("Bio", truncateRunes(a.Bio, maxBioRunes))
	appendField("Skills", a.Skills)
	appendField("Looking for", a.LookingFor)
	appendField("Offering", a.Offering)

	return strings.Join(parts, "\n")
}

// FormatProfileCompact renders the one-line form used for candidate lists.
func FormatProfileCompact(a *event.Attendee) string {
	var b strings.Builder
	b.WriteString(a.Name)

	if title := strings.TrimSpace(a.Title); title != "" {
		b.WriteString(" - " + title)
	}
	if company := strings.TrimSpace(a.Company); company != "" {
		b.WriteString(" @ " + company)
	}
	if industry := strings.TrimSpace(a.Industry); industry != "" {
		b.WriteString(" (" + industry + ")")
	}

	return b.String()
}

func truncateRunes(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
