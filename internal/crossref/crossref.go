// Package crossref finds entity references ("task #12", "project 3") in
// free text such as notification subjects.
package crossref

import (
	"regexp"
	"strings"

	"github.com/nhle/taskhub/internal/model"
)

// refPattern matches "task #12", "Task 12", "project #4" and the
// already-formatted "task:12".
var refPattern = regexp.MustCompile(`(?i)\b(task|project|user)\s*(?:#|:|\s)\s*([A-Za-z0-9-]+)`)

// ExtractRefs returns every entity reference found in text as
// model.ObjectRef strings ("task:12"). The result is deduplicated and keeps
// the order of first occurrence.
func ExtractRefs(text string) []string {
	matches := refPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var result []string
	for _, m := range matches {
		if !hasDigit(m[2]) {
			continue
		}
		ref := model.ObjectRef(strings.ToLower(m[1]), m[2])
		if seen[ref] {
			continue
		}
		seen[ref] = true
		result = append(result, ref)
	}
	return result
}

// FirstRef returns the first reference in text, preferring ones listed in
// known when known is non-empty.
func FirstRef(text string, known map[string]bool) (string, bool) {
	refs := ExtractRefs(text)
	if len(refs) == 0 {
		return "", false
	}
	if len(known) == 0 {
		return refs[0], true
	}
	for _, r := range refs {
		if known[r] {
			return r, true
		}
	}
	return "", false
}

// SplitRef splits "task:12" into its kind and id.
func SplitRef(ref string) (kind, id string, ok bool) {
	kind, id, ok = strings.Cut(ref, ":")
	if !ok || kind == "" || id == "" {
		return "", "", false
	}
	return kind, id, true
}

// LinkFor returns the UI route for a reference ("/tasks/12").
func LinkFor(ref string) string {
	kind, id, ok := SplitRef(ref)
	if !ok {
		return ""
	}
	return "/" + kind + "s/" + id
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}
