// Package cache holds fetched responses for the duration of a health run.
//
// Several probes read the same homepage; the fetch client stores the first
// response here so the site sees one request per URL and method. Entries are
// opaque bytes with a TTL, keyed by a normalized request key (see RequestKey).
package cache
