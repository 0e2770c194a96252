// Package log provides slog construction for webchecks with automatic
// sanitization of sensitive values.
//
// The SecureHandler masks:
//   - header-like attributes (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - values that look like bearer/basic credentials, JWTs or private keys
//   - userinfo and secret query parameters inside URLs, keeping the rest of the URL
//
// Crawl logs are full of URLs, and sign-in links frequently carry session
// tokens in their query strings, so URL masking applies to messages as well
// as attributes.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//	logger.Info("dispatching", "url", "https://user:pw@example.com/?token=abc")
//	// url=https://***REDACTED***@example.com/?token=***REDACTED***
package log
