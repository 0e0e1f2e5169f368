// Package log provides secure logging built on top of the standard slog
// package.
//
// The SecureHandler masks sensitive information in log output:
//   - credential-carrying HTTP headers (Authorization, Cookie, X-Api-Key)
//   - values that look like secrets (bearer and basic tokens, JWTs, keys)
//   - the user:password part of URLs
//
// Per-site headers are free-form, so each one is masked on its own by name
// and value before it reaches the log, even in verbose mode.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("site settings",
//	    "host", "example.com",
//	    "headers", log.Headers(map[string]string{"Cookie": "session=abc"}),
//	)
//	// headers.Cookie=***REDACTED***
package log
