// Package editor applies planned edit actions to PDF bytes.
package editor

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sirupsen/logrus"

	"pdfedit/internal/apperr"
	"pdfedit/internal/domain"
	"pdfedit/internal/textextract"
)

const (
	replaceNoteOffset = "50 -50"
	redactNoteOffset  = "50 -70"
	noteStyle         = "font:Helvetica, points:10, fillcolor:#FF0000, pos:tl, scale:1 abs, rot:0, op:1"
)

func init() {
	// pdfcpu otherwise writes a config directory under the user's home on first use.
	api.DisableConfigDir()
}

// Report summarizes what Apply did.
type Report struct {
	PagesBefore      int      `json:"pagesBefore"`
	PagesAfter       int      `json:"pagesAfter"`
	Applied          []string `json:"applied"`
	RedactionMatches int      `json:"redactionMatches"`
}

type Editor struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *Editor {
	return &Editor{logger: logger}
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	// Classic xref tables keep the output readable by the text extractor.
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// Validate reports whether data is a PDF pdfcpu can read.
func (e *Editor) Validate(data []byte) error {
	if len(data) == 0 {
		return apperr.NewValidationError("file is empty")
	}
	if err := api.Validate(bytes.NewReader(data), newConfiguration()); err != nil {
		return apperr.NewValidationError("file is not a readable PDF", err.Error())
	}
	return nil
}

func (e *Editor) PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return 0, apperr.NewProcessingError("failed to read page count", err)
	}
	return n, nil
}

// Apply runs the actions in order, each on the output of the previous one.
func (e *Editor) Apply(data []byte, actions []domain.Action) ([]byte, *Report, error) {
	pages, err := e.PageCount(data)
	if err != nil {
		return nil, nil, err
	}
	report := &Report{PagesBefore: pages, Applied: []string{}}

	current := data
	for i, action := range actions {
		if err := action.Validate(); err != nil {
			return nil, nil, apperr.NewValidationError(fmt.Sprintf("action %d is invalid", i+1), err.Error())
		}

		var (
			next    []byte
			summary string
		)
		switch action.Type {
		case domain.ActionDeletePages:
			next, summary, err = e.deletePages(current, pages, action)
		case domain.ActionRotatePages:
			next, summary, err = e.rotatePages(current, pages, action)
		case domain.ActionReplaceText:
			next, summary, err = e.replaceText(current, pages, action)
		case domain.ActionRedact:
			var matches int
			next, summary, matches, err = e.redact(current, pages, action)
			report.RedactionMatches += matches
		case domain.ActionNoop:
			next, summary = current, "noop: "+action.Message
		}
		if err != nil {
			if _, ok := apperr.As(err); ok {
				return nil, nil, err
			}
			return nil, nil, apperr.NewProcessingError(fmt.Sprintf("failed to apply %s action", action.Type), err)
		}

		current = next
		if pages, err = e.PageCount(current); err != nil {
			return nil, nil, err
		}
		report.Applied = append(report.Applied, summary)

		e.logger.WithFields(logrus.Fields{
			"action": action.Type,
			"index":  i + 1,
			"pages":  pages,
		}).Debug("action applied")
	}

	report.PagesAfter = pages
	return current, report, nil
}

// inRange keeps the 1-based page numbers that exist, sorted and without duplicates.
func inRange(requested []int, pageCount int) []int {
	seen := make(map[int]bool, len(requested))
	var out []int
	for _, p := range requested {
		if p >= 1 && p <= pageCount && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

func selection(pages []int) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = strconv.Itoa(p)
	}
	return out
}

func joinPages(pages []int) string {
	return strings.Join(selection(pages), ", ")
}

func (e *Editor) deletePages(data []byte, pageCount int, action domain.Action) ([]byte, string, error) {
	pages := inRange(action.Pages, pageCount)
	if len(pages) == 0 {
		return data, "delete_pages: no pages in range", nil
	}
	if len(pages) == pageCount {
		return nil, "", apperr.NewValidationError("cannot delete every page of the document")
	}

	var out bytes.Buffer
	if err := api.RemovePages(bytes.NewReader(data), &out, selection(pages), newConfiguration()); err != nil {
		return nil, "", err
	}
	return out.Bytes(), "deleted pages " + joinPages(pages), nil
}

func normalizeRotation(deg int) int {
	return ((deg % 360) + 360) % 360
}

func (e *Editor) rotatePages(data []byte, pageCount int, action domain.Action) ([]byte, string, error) {
	pages := inRange(action.Pages, pageCount)
	rotation := normalizeRotation(action.Rotation)
	if len(pages) == 0 || rotation == 0 {
		return data, "rotate_pages: nothing to rotate", nil
	}

	var out bytes.Buffer
	if err := api.Rotate(bytes.NewReader(data), &out, rotation, selection(pages), newConfiguration()); err != nil {
		return nil, "", err
	}
	return out.Bytes(), fmt.Sprintf("rotated pages %s by %d degrees", joinPages(pages), rotation), nil
}

func (e *Editor) replaceText(data []byte, pageCount int, action domain.Action) ([]byte, string, error) {
	var pages []int
	for p := 1; p <= pageCount; p++ {
		if action.TargetsPage(p) {
			pages = append(pages, p)
		}
	}
	if len(pages) == 0 {
		return data, "replace_text: page out of range", nil
	}

	note := fmt.Sprintf(`Note: "%s" -> "%s"`, action.Find, action.Replace)
	out, err := stampNote(data, pages, note, replaceNoteOffset)
	if err != nil {
		return nil, "", err
	}
	return out, fmt.Sprintf("noted replacement of %q on pages %s", action.Find, joinPages(pages)), nil
}

func (e *Editor) redact(data []byte, pageCount int, action domain.Action) ([]byte, string, int, error) {
	re, err := action.RedactRegexp()
	if err != nil {
		return nil, "", 0, err
	}

	matches := 0
	if texts, err := textextract.Extract(data); err != nil {
		e.logger.WithError(err).Warn("text extraction failed, redaction match count unavailable")
	} else {
		matches = textextract.CountMatches(texts, re)
	}

	pages := make([]int, pageCount)
	for i := range pages {
		pages[i] = i + 1
	}

	note := "Note: Redaction requested for pattern: " + action.Pattern
	out, err := stampNote(data, pages, note, redactNoteOffset)
	if err != nil {
		return nil, "", 0, err
	}
	return out, fmt.Sprintf("noted %s redaction (%d matches)", action.Pattern, matches), matches, nil
}

// stampNote draws a single red line of text near the top-left corner of each page.
func stampNote(data []byte, pages []int, text, offset string) ([]byte, error) {
	wm, err := noteWatermark(text, offset)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(data), &out, selection(pages), wm, newConfiguration()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func noteWatermark(text, offset string) (*model.Watermark, error) {
	desc := noteStyle + ", offset:" + offset
	wm, err := pdfcpu.ParseTextWatermarkDetails(sanitizeNote(text), desc, true, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("failed to build note: %w", err)
	}
	return wm, nil
}

// sanitizeNote keeps the note within what a standard Helvetica font can encode
// and on one line. pdfcpu reads a literal \n as a line break and expands
// %p, %P, %t and %v, so backslashes are drawn as slashes and percent signs
// are escaped.
func sanitizeNote(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteByte(' ')
		case r < 0x20:
		case r > 0xFF:
			b.WriteByte('?')
		case r == '\\':
			b.WriteByte('/')
		case r == '%':
			b.WriteString("%%")
			if i+1 < len(runes) && strings.ContainsRune("pPtv", runes[i+1]) {
				b.WriteByte(' ')
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
