package identity

import (
	"regexp"
	"strings"

	"dirsync/internal/directorysync/models"
)

var placeholderRe = regexp.MustCompile(`#\{(.+?)\}`)

// IsTemplate reports whether expr contains #{attr} placeholders.
func IsTemplate(expr string) bool {
	return strings.Contains(expr, "#{") && placeholderRe.MatchString(expr)
}

// ExpandTemplate replaces every #{attr} with the first value of attr on the record.
// Missing attributes expand to "".
func ExpandTemplate(expr string, record *models.DirectoryRecord) string {
	return placeholderRe.ReplaceAllStringFunc(expr, func(match string) string {
		field := placeholderRe.FindStringSubmatch(match)[1]
		return record.First(field)
	})
}
