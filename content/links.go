package content

import (
	"regexp"
	"strings"
)

var linkPattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// Link is an inline Markdown link.
type Link struct {
	Text   string
	Target string
}

// Links returns the inline links of body in order of appearance. Image
// links are included, since a missing image is as broken as a missing page.
func Links(body string) []Link {
	matches := linkPattern.FindAllStringSubmatch(body, -1)
	links := make([]Link, 0, len(matches))
	for _, m := range matches {
		links = append(links, Link{Text: m[1], Target: strings.TrimSpace(m[2])})
	}
	return links
}

// LinkKind classifies a link target.
type LinkKind int

const (
	// LinkExternal is an absolute URL (http, https, mailto, ...).
	LinkExternal LinkKind = iota
	// LinkSiteAbsolute is a path rooted at the site, such as "/about/".
	LinkSiteAbsolute
	// LinkRelative is a path relative to the entry's directory.
	LinkRelative
	// LinkAnchor is a same-page fragment such as "#intro".
	LinkAnchor
)

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// Kind classifies the link target.
func (l Link) Kind() LinkKind {
	t := l.Target
	switch {
	case strings.HasPrefix(t, "http"), strings.HasPrefix(t, "//"), schemePattern.MatchString(t):
		return LinkExternal
	case strings.HasPrefix(t, "/"):
		return LinkSiteAbsolute
	case strings.HasPrefix(t, "#"):
		return LinkAnchor
	default:
		return LinkRelative
	}
}

// Path returns the target without any title, query or fragment, as in
// `[a](/post/ "Title")` or `[b](img.png#x)`.
func (l Link) Path() string {
	t := l.Target
	if i := strings.IndexAny(t, " \t"); i >= 0 {
		t = t[:i]
	}
	if i := strings.IndexAny(t, "?#"); i >= 0 {
		t = t[:i]
	}
	return strings.Trim(t, "<>")
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
