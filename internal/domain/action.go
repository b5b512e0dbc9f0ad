package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type ActionType string

const (
	ActionDeletePages ActionType = "delete_pages"
	ActionRotatePages ActionType = "rotate_pages"
	ActionReplaceText ActionType = "replace_text"
	ActionRedact      ActionType = "redact"
	ActionNoop        ActionType = "noop"
)

const (
	ScopeAll  = "all"
	ScopePage = "page"
)

const (
	PatternEmail  = "email"
	PatternPhone  = "phone"
	PatternCustom = "custom"
)

var ErrInvalidAction = errors.New("invalid action")

var redactPatterns = map[string]*regexp.Regexp{
	PatternEmail: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`),
	PatternPhone: regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
}

// Action is a single edit step. Which fields are meaningful depends on Type.
type Action struct {
	Type ActionType `json:"type"`

	// delete_pages, rotate_pages
	Pages    []int `json:"pages,omitempty"`
	Rotation int   `json:"rotation,omitempty"`

	// replace_text
	Find    string `json:"find,omitempty"`
	Replace string `json:"replace,omitempty"`
	Scope   string `json:"scope,omitempty"`
	Page    int    `json:"page,omitempty"`

	// redact
	Pattern string `json:"pattern,omitempty"`
	Regex   string `json:"regex,omitempty"`

	// noop
	Message string `json:"message,omitempty"`
}

type ActionList struct {
	Actions []Action `json:"actions"`
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidAction, fmt.Sprintf(format, args...))
}

func (a Action) Validate() error {
	switch a.Type {
	case ActionDeletePages:
		if len(a.Pages) == 0 {
			return invalid("delete_pages requires pages")
		}
	case ActionRotatePages:
		if len(a.Pages) == 0 {
			return invalid("rotate_pages requires pages")
		}
		if a.Rotation == 0 || a.Rotation%90 != 0 {
			return invalid("rotation must be a non-zero multiple of 90, got %d", a.Rotation)
		}
	case ActionReplaceText:
		if a.Find == "" {
			return invalid("replace_text requires find")
		}
		switch a.Scope {
		case "", ScopeAll:
		case ScopePage:
			if a.Page < 1 {
				return invalid("replace_text with page scope requires page >= 1")
			}
		default:
			return invalid("unknown replace_text scope %q", a.Scope)
		}
	case ActionRedact:
		if _, err := a.RedactRegexp(); err != nil {
			return err
		}
	case ActionNoop:
	default:
		return invalid("unknown action type %q", a.Type)
	}
	return nil
}

// RedactRegexp resolves the expression a redact action matches against.
func (a Action) RedactRegexp() (*regexp.Regexp, error) {
	if a.Pattern == PatternCustom {
		if strings.TrimSpace(a.Regex) == "" {
			return nil, invalid("custom redact pattern requires regex")
		}
		re, err := regexp.Compile(a.Regex)
		if err != nil {
			return nil, invalid("bad redact regex: %v", err)
		}
		return re, nil
	}
	re, ok := redactPatterns[a.Pattern]
	if !ok {
		return nil, invalid("unknown redact pattern %q", a.Pattern)
	}
	return re, nil
}

// TargetsPage reports whether a replace_text action applies to the given 1-based page.
func (a Action) TargetsPage(page int) bool {
	if a.Scope == ScopePage {
		return a.Page == page
	}
	return true
}

func (l ActionList) Validate() error {
	if len(l.Actions) == 0 {
		return invalid("plan contains no actions")
	}
	for i, a := range l.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i+1, err)
		}
	}
	return nil
}

// NoopOnly reports whether the list is a single noop, i.e. the request was refused.
func (l ActionList) NoopOnly() (string, bool) {
	if len(l.Actions) == 1 && l.Actions[0].Type == ActionNoop {
		return l.Actions[0].Message, true
	}
	return "", false
}
