// Package textextract pulls plain text out of PDF pages.
package textextract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// Extract returns the text of every page, in page order. Pages whose text
// cannot be decoded are returned empty rather than failing the whole document.
func Extract(data []byte) (pages []PageText, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty PDF content")
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	n := r.NumPage()
	pages = make([]PageText, 0, n)
	for i := 1; i <= n; i++ {
		pt := PageText{Page: i}
		page := r.Page(i)
		if !page.V.IsNull() {
			if text, err := page.GetPlainText(nil); err == nil {
				pt.Text = strings.TrimSpace(text)
			}
		}
		pages = append(pages, pt)
	}
	return pages, nil
}

// CountMatches counts non-overlapping matches of re across all pages.
func CountMatches(pages []PageText, re *regexp.Regexp) int {
	total := 0
	for _, p := range pages {
		total += len(re.FindAllStringIndex(p.Text, -1))
	}
	return total
}
