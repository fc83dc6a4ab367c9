package shared

import (
	"regexp"
	"strings"
)

var (
	slugSpaces  = regexp.MustCompile(`\s+`)
	slugInvalid = regexp.MustCompile(`[^a-z0-9-]+`)
	slugDashes  = regexp.MustCompile(`-{2,}`)
)

// Slugify formats a string for use in a URL.
//
// Slugify("Hello World") => "hello-world", Slugify("Drum & Bass") => "drum-and-bass"
func Slugify(input string) string {
	s := strings.ToLower(input)
	s = slugSpaces.ReplaceAllString(s, "-")
	s = strings.ReplaceAll(s, "&", "-and-")
	s = slugInvalid.ReplaceAllString(s, "")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
