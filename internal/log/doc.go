// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// # Security Features
//
// The SecureHandler sanitizes sensitive information in log output:
//   - Credential headers (Authorization, Proxy-Authorization, Cookie, Set-Cookie)
//   - Values under password-like or token-like keys
//   - Bearer and Basic authorization values found under any key
//   - Sensitive entries of http.Header values, keeping the rest readable
//   - Passwords embedded in URLs, such as proxy URLs
//
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of secrets in logs that may be shared or stored.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	logger.Debug("request sent",
//	    "url", "http://example.com",
//	    "header", req.Header, // Authorization and Cookie are masked
//	)
//
//	slog.SetDefault(logger)
package log
