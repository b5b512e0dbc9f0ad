package planner

import (
	"encoding/json"
	"errors"
	"strings"

	"pdfedit/internal/domain"
)

var errNoJSON = errors.New("no JSON object in model output")

// parseActions decodes the model's reply. Models sometimes wrap the JSON in
// a Markdown fence or add a sentence around it, so only the outermost object is read.
func parseActions(content string) (domain.ActionList, error) {
	var list domain.ActionList

	raw := strings.TrimSpace(content)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return list, errNoJSON
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), &list); err != nil {
		return list, err
	}
	return list, nil
}
