package planner

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pdfedit/internal/textextract"
)

const (
	contextCharsPerPage = 500
	contextMaxPages     = 20
)

const systemPrompt = `You are a PDF editing assistant. Your only job is to turn the user's request into JSON edit actions.

RULES:
1. Output JSON only. No prose, no explanations, no Markdown.
2. The output must have exactly this shape:
{
  "actions": [...]
}

Action types:

1. replace_text - replace text in the PDF
{
  "type": "replace_text",
  "find": "text to find",
  "replace": "replacement text",
  "scope": "all" | "page",
  "page": 3  // only when scope is "page"
}

2. delete_pages - remove pages (page numbers start at 1)
{
  "type": "delete_pages",
  "pages": [2, 3, 5]
}

3. redact - hide sensitive information
{
  "type": "redact",
  "pattern": "email" | "phone" | "custom",
  "regex": "\\d{3}-\\d{3}-\\d{4}"  // only when pattern is "custom"
}

4. rotate_pages - rotate pages clockwise
{
  "type": "rotate_pages",
  "pages": [1, 2],
  "rotation": 90 | 180 | 270
}

5. noop - the request is impossible or unclear
{
  "type": "noop",
  "message": "why the request cannot be done"
}

Examples:

User: "replace John Doe with Jane Doe everywhere"
{"actions": [{"type": "replace_text", "find": "John Doe", "replace": "Jane Doe", "scope": "all"}]}

User: "delete page 2"
{"actions": [{"type": "delete_pages", "pages": [2]}]}

User: "redact all emails"
{"actions": [{"type": "redact", "pattern": "email"}]}

User: "replace $10,000 with $12,000 on page 3"
{"actions": [{"type": "replace_text", "find": "$10,000", "replace": "$12,000", "scope": "page", "page": 3}]}

User: "rotate the last page upside down" (document has 4 pages)
{"actions": [{"type": "rotate_pages", "pages": [4], "rotation": 180}]}

User: "make the text purple"
{"actions": [{"type": "noop", "message": "Cannot change text colors in PDF - only text replacement, page deletion, rotation, and redaction are supported"}]}

Only use page numbers that exist in the document. Output only valid JSON.`

// userMessage prefixes the instruction with what we know about the document.
func userMessage(req PlanRequest) string {
	var b strings.Builder
	if req.PageCount > 0 {
		fmt.Fprintf(&b, "Document: %d pages.\n", req.PageCount)
	}
	if ctx := documentContext(req.Pages); ctx != "" {
		b.WriteString("Page text excerpts:\n")
		b.WriteString(ctx)
		b.WriteString("\n")
	}
	if b.Len() > 0 {
		b.WriteString("\nRequest: ")
	}
	b.WriteString(req.Instruction)
	return b.String()
}

func documentContext(pages []textextract.PageText) string {
	var b strings.Builder
	for i, p := range pages {
		if i >= contextMaxPages {
			fmt.Fprintf(&b, "(%d more pages not shown)\n", len(pages)-contextMaxPages)
			break
		}
		text := strings.Join(strings.Fields(p.Text), " ")
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "[page %d] %s\n", p.Page, truncate(text, contextCharsPerPage))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
