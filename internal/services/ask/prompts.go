package ask

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/marginote/marginote/internal/store"
)

// promptPair is a locale-specific system/user template. The user template has
// two slots: the note context and the question.
type promptPair struct {
	system string
	user   string
}

const defaultLocale = "en"

var prompts = map[string]promptPair{
	"en": {
		system: "You are a reading assistant. Answer the question using only the reader's notes provided below. " +
			"If the notes do not contain enough information to answer confidently, say so and set low_confidence to true. " +
			"Respond with JSON matching the requested schema.",
		user: "Notes:\n%s\n\nQuestion: %s",
	},
	"es": {
		system: "Eres un asistente de lectura. Responde a la pregunta usando únicamente las notas del lector incluidas abajo. " +
			"Si las notas no contienen información suficiente para responder con seguridad, dilo y marca low_confidence como true. " +
			"Responde con JSON que cumpla el esquema solicitado.",
		user: "Notas:\n%s\n\nPregunta: %s",
	},
}

// promptsFor selects the locale's template pair, falling back to English.
func promptsFor(locale string) promptPair {
	if pp, ok := prompts[strings.ToLower(strings.TrimSpace(locale))]; ok {
		return pp
	}
	return prompts[defaultLocale]
}

const emptyContext = "(no notes recorded yet)"

// buildContext concatenates notes grouped by their source unit so the model
// sees where each note came from. Notes arrive in reading order, so equal
// headings are contiguous. Output is bounded by budget: trailing notes that
// would overflow it are dropped whole, and a single oversized leading note is
// truncated so the context is never empty when notes exist.
func buildContext(notes []store.NoteContext, budget int) string {
	if len(notes) == 0 || budget <= 0 {
		return emptyContext
	}

	var b strings.Builder
	lastHeading := ""
	for _, n := range notes {
		heading := fmt.Sprintf("%s / %s / %s", n.SeriesTitle, n.BookTitle, n.ChapterTitle)

		var seg strings.Builder
		if heading != lastHeading {
			if b.Len() > 0 {
				seg.WriteString("\n")
			}
			seg.WriteString("## ")
			seg.WriteString(heading)
			seg.WriteString("\n")
		}
		seg.WriteString("- ")
		seg.WriteString(n.Content)
		seg.WriteString("\n")

		if b.Len()+seg.Len() > budget {
			if b.Len() == 0 {
				head := "## " + heading + "\n- "
				keep := budget - len(head) - 1
				if keep <= 0 {
					return emptyContext
				}
				if keep > len(n.Content) {
					keep = len(n.Content)
				}
				for keep > 0 && keep < len(n.Content) && !utf8.RuneStart(n.Content[keep]) {
					keep--
				}
				return head + n.Content[:keep] + "\n"
			}
			break
		}
		b.WriteString(seg.String())
		lastHeading = heading
	}
	return b.String()
}
