package probe

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io/fs"
	"net"
	"net/url"

	"github.com/jonwraymond/sitehealth/content"
	"github.com/jonwraymond/sitehealth/fetch"
	"github.com/jonwraymond/sitehealth/toolexec"
)

var (
	// ErrParse marks data that could not be understood.
	ErrParse = errors.New("probe: parse failure")

	// ErrNotFound marks a required resource that does not exist.
	ErrNotFound = errors.New("probe: not found")
)

// Classify maps err to the ErrorKind a failed Result should carry.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var f Failure
	if errors.As(err, &f) {
		return f.Kind
	}

	switch {
	case errors.Is(err, toolexec.ErrToolMissing):
		return KindToolMissing
	case errors.Is(err, toolexec.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrNotFound), errors.Is(err, fs.ErrNotExist), errors.Is(err, content.ErrNoEntries):
		return KindNotFound
	case errors.Is(err, ErrParse), errors.Is(err, content.ErrFrontMatter), errors.Is(err, fetch.ErrBodyTooLarge):
		return KindParseFailure
	}

	var (
		syntaxErr *json.SyntaxError
		xmlErr    *xml.SyntaxError
		netErr    net.Error
		urlErr    *url.Error
		opErr     *net.OpError
		dnsErr    *net.DNSError
	)
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &xmlErr):
		return KindParseFailure
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	case errors.As(err, &dnsErr), errors.As(err, &opErr), errors.As(err, &urlErr):
		return KindNetworkUnavailable
	case errors.Is(err, context.Canceled):
		return KindTimeout
	}
	return KindInternal
}
