// Package secret resolves credential references found in configuration.
//
// A value of the form secretref:<provider>:<ref> is replaced by what the
// provider returns for ref. Two providers are built in:
//
//	secretref:env:SITEHEALTH_API_KEY     the environment variable
//	secretref:file:/run/secrets/jwt_key  the file contents, trailing newline removed
//
// References may also appear inside a longer value, as in
// "Bearer secretref:env:TOKEN".
package secret
