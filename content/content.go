// Package content reads the Markdown entries of a static site: each file's
// front-matter header and its body.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

var (
	// ErrFrontMatter is returned for an entry whose header is not valid YAML.
	ErrFrontMatter = errors.New("content: invalid front matter")

	// ErrNoEntries is returned when the entry directory does not exist.
	ErrNoEntries = errors.New("content: entry directory not found")
)

// Entry is one Markdown file.
type Entry struct {
	// Path is slash-separated and relative to the tree root.
	Path   string
	Header Header
	Body   string
}

// Dir returns the directory containing the entry, relative to the tree root.
func (e Entry) Dir() string {
	return path.Dir(e.Path)
}

// SkipDirs are the directory names a recursive Tree never descends into.
var SkipDirs = []string{".git", "_site", "vendor", "node_modules", ".jekyll-cache"}

// Tree iterates the entries under Dir in a read-only file system.
type Tree struct {
	FS  fs.FS
	Dir string // default "_posts"
	Ext string // default ".md"

	// Recursive includes files in every subdirectory of Dir except
	// SkipDirs.
	Recursive bool
}

// NewTree returns a tree of "_posts/*.md" in fsys.
func NewTree(fsys fs.FS) *Tree {
	return &Tree{FS: fsys, Dir: "_posts", Ext: ".md"}
}

// NewSiteTree returns a tree of every "*.md" in fsys.
func NewSiteTree(fsys fs.FS) *Tree {
	return &Tree{FS: fsys, Dir: ".", Ext: ".md", Recursive: true}
}

// Paths lists entry paths in lexical order.
func (t *Tree) Paths() ([]string, error) {
	dir := t.Dir
	if dir == "" {
		dir = "_posts"
	}
	ext := t.Ext
	if ext == "" {
		ext = ".md"
	}
	if fi, err := fs.Stat(t.FS, dir); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoEntries, dir)
	}
	if t.Recursive {
		return walk(t.FS, dir, ext)
	}
	matches, err := fs.Glob(t.FS, path.Join(dir, "*"+ext))
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	return matches, nil
}

func walk(fsys fs.FS, dir, ext string) ([]string, error) {
	var matches []string
	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && slices.Contains(SkipDirs, d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if path.Ext(p) == ext {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	return matches, nil
}

// Entries yields every entry in lexical path order. A read or header error
// for one file is yielded with an Entry that carries only its Path, and
// iteration continues. If the directory itself cannot be listed, a single
// error is yielded.
func (t *Tree) Entries(ctx context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		paths, err := t.Paths()
		if err != nil {
			yield(Entry{}, err)
			return
		}
		for _, p := range paths {
			if err := ctx.Err(); err != nil {
				yield(Entry{Path: p}, err)
				return
			}
			data, err := fs.ReadFile(t.FS, p)
			if err != nil {
				if !yield(Entry{Path: p}, err) {
					return
				}
				continue
			}
			header, body, err := Parse(data)
			if err != nil {
				if !yield(Entry{Path: p}, fmt.Errorf("%s: %w", p, err)) {
					return
				}
				continue
			}
			if !yield(Entry{Path: p, Header: header, Body: body}, nil) {
				return
			}
		}
	}
}

var delim = []byte("---")

// Parse splits a document into its front-matter header and body. A document
// without a leading "---" line has an empty header.
func Parse(data []byte) (Header, string, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	first, rest, ok := cutLine(data)
	if !ok || !bytes.Equal(bytes.TrimRight(first, " \t\r"), delim) {
		return Header{}, string(data), nil
	}

	var raw []byte
	for {
		line, next, more := cutLine(rest)
		if bytes.Equal(bytes.TrimRight(line, " \t\r"), delim) {
			raw = data[len(first)+1 : len(data)-len(rest)]
			rest = next
			break
		}
		if !more {
			return nil, "", fmt.Errorf("%w: unterminated header", ErrFrontMatter)
		}
		rest = next
	}

	header := Header{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := yaml.Unmarshal(raw, &header); err != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrFrontMatter, err)
		}
	}
	return header, strings.TrimPrefix(string(rest), "\n"), nil
}

func cutLine(b []byte) (line, rest []byte, ok bool) {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i], b[i+1:], true
	}
	return b, nil, len(b) > 0
}

// Header holds front-matter fields.
type Header map[string]any

// String returns a string field, or "" when absent or not a string.
func (h Header) String(key string) string {
	switch v := h[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Has reports whether key is present with a non-empty value.
func (h Header) Has(key string) bool {
	switch v := h[key].(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	default:
		return true
	}
}

// Title returns the "title" field.
func (h Header) Title() string {
	return h.String("title")
}

// Draft reports whether "draft" is set to true.
func (h Header) Draft() bool {
	switch v := h["draft"].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	default:
		return false
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Date returns the "date" field. Strings are read in the common Jekyll
// layouts; dates without a zone are taken as UTC.
func (h Header) Date() (time.Time, bool) {
	switch v := h["date"].(type) {
	case time.Time:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
