package domain_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfedit/internal/domain"
)

func TestActionValidate(t *testing.T) {
	tests := []struct {
		name    string
		action  domain.Action
		wantErr bool
	}{
		{"delete ok", domain.Action{Type: domain.ActionDeletePages, Pages: []int{2}}, false},
		{"delete without pages", domain.Action{Type: domain.ActionDeletePages}, true},
		{"rotate ok", domain.Action{Type: domain.ActionRotatePages, Pages: []int{1}, Rotation: 270}, false},
		{"rotate negative", domain.Action{Type: domain.ActionRotatePages, Pages: []int{1}, Rotation: -90}, false},
		{"rotate by 45", domain.Action{Type: domain.ActionRotatePages, Pages: []int{1}, Rotation: 45}, true},
		{"rotate by zero", domain.Action{Type: domain.ActionRotatePages, Pages: []int{1}}, true},
		{"replace all", domain.Action{Type: domain.ActionReplaceText, Find: "a", Replace: "b", Scope: "all"}, false},
		{"replace empty replacement", domain.Action{Type: domain.ActionReplaceText, Find: "a"}, false},
		{"replace without find", domain.Action{Type: domain.ActionReplaceText, Replace: "b"}, true},
		{"replace page scope without page", domain.Action{Type: domain.ActionReplaceText, Find: "a", Scope: "page"}, true},
		{"replace unknown scope", domain.Action{Type: domain.ActionReplaceText, Find: "a", Scope: "doc"}, true},
		{"redact email", domain.Action{Type: domain.ActionRedact, Pattern: "email"}, false},
		{"redact custom", domain.Action{Type: domain.ActionRedact, Pattern: "custom", Regex: `\d+`}, false},
		{"redact custom broken", domain.Action{Type: domain.ActionRedact, Pattern: "custom", Regex: `(`}, true},
		{"redact custom empty", domain.Action{Type: domain.ActionRedact, Pattern: "custom"}, true},
		{"redact unknown", domain.Action{Type: domain.ActionRedact, Pattern: "ssn"}, true},
		{"noop", domain.Action{Type: domain.ActionNoop, Message: "no"}, false},
		{"unknown type", domain.Action{Type: "recolor"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrInvalidAction))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRedactPatterns(t *testing.T) {
	email, err := domain.Action{Type: domain.ActionRedact, Pattern: "email"}.RedactRegexp()
	require.NoError(t, err)
	assert.Len(t, email.FindAllString("mail a.b@example.com or c@d.org", -1), 2)

	phone, err := domain.Action{Type: domain.ActionRedact, Pattern: "phone"}.RedactRegexp()
	require.NoError(t, err)
	assert.Equal(t, []string{"555-123-4567", "555.123.4567", "5551234567"},
		phone.FindAllString("555-123-4567 555.123.4567 5551234567", -1))
}

func TestActionListNoopOnly(t *testing.T) {
	list := domain.ActionList{Actions: []domain.Action{{Type: domain.ActionNoop, Message: "cannot recolor"}}}
	msg, ok := list.NoopOnly()
	assert.True(t, ok)
	assert.Equal(t, "cannot recolor", msg)

	list.Actions = append(list.Actions, domain.Action{Type: domain.ActionDeletePages, Pages: []int{1}})
	_, ok = list.NoopOnly()
	assert.False(t, ok)

	assert.Error(t, domain.ActionList{}.Validate())
}

func TestActionListValidateReportsIndex(t *testing.T) {
	list := domain.ActionList{Actions: []domain.Action{
		{Type: domain.ActionDeletePages, Pages: []int{1}},
		{Type: domain.ActionRotatePages, Pages: []int{1}, Rotation: 10},
	}}
	err := list.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "action 2")
}

func TestTargetsPage(t *testing.T) {
	all := domain.Action{Type: domain.ActionReplaceText, Find: "x", Scope: "all"}
	assert.True(t, all.TargetsPage(3))

	one := domain.Action{Type: domain.ActionReplaceText, Find: "x", Scope: "page", Page: 2}
	assert.True(t, one.TargetsPage(2))
	assert.False(t, one.TargetsPage(1))
}

func TestBlobKey(t *testing.T) {
	id := uuid.MustParse("8c0a4b52-3c1e-4a8e-9b7e-0f9a3f0f4c11")
	assert.Equal(t, "pdfs/8c0a4b52-3c1e-4a8e-9b7e-0f9a3f0f4c11/v3-report.pdf", domain.BlobKey(id, 3, "report.pdf"))
	assert.Equal(t, "previews/8c0a4b52-3c1e-4a8e-9b7e-0f9a3f0f4c11/v3.jpg", domain.PreviewKey(id, 3))
}

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/pdfs/id/v1-my%20file.pdf",
		domain.ObjectURL("https://cdn.example.com/", "pdfs/id/v1-my file.pdf"))
	assert.Equal(t, "http://localhost:9000/bucket/pdfs/a.pdf",
		domain.ObjectURL("http://localhost:9000/bucket", "pdfs/a.pdf"))
}
