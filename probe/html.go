package probe

import (
	"regexp"
	"strings"
)

var (
	linkTagPattern = regexp.MustCompile(`(?is)<link\b[^>]*>`)
	attrPattern    = regexp.MustCompile(`(?is)\b([a-z-]+)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
)

// stylesheets returns the href of every <link rel="stylesheet"> in html,
// in document order, without duplicates.
func stylesheets(html string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tag := range linkTagPattern.FindAllString(html, -1) {
		attrs := tagAttrs(tag)
		if !hasToken(attrs["rel"], "stylesheet") {
			continue
		}
		href := strings.TrimSpace(attrs["href"])
		if href == "" || seen[href] {
			continue
		}
		seen[href] = true
		out = append(out, href)
	}
	return out
}

func tagAttrs(tag string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrPattern.FindAllStringSubmatch(tag, -1) {
		name := strings.ToLower(m[1])
		if _, dup := attrs[name]; dup {
			continue
		}
		attrs[name] = m[2] + m[3] + m[4]
	}
	return attrs
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, token) {
			return true
		}
	}
	return false
}
