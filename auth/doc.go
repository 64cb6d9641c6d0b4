// Package auth protects the report endpoints of "sitehealth serve".
//
// Two authenticators are provided: static API keys sent in a header and
// HS256 bearer tokens. Middleware tries them in order and attaches the
// resulting Identity to the request context.
package auth
