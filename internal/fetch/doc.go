// Package fetch provides the HTTP plumbing shared by every fetch pipeline.
//
// # Components
//
//   - Config: immutable request/transport configuration with With* builders
//   - Session: one HTTP client, one cookie jar and a monotonically increasing
//     fetch id counter shared by every request of a pipeline run
//   - Setup: configuration transform, response predicate and tolerance
//     options attached to a pipeline stage and merged into descendants
//   - Info: metadata about a completed request (status, headers, media type)
//   - Body: a single-use response body
//   - Reader: strategies that turn an Info and a Body into content values
//
// # Transport projection
//
// A Session keeps a single *http.Client. Only the transport-affecting parts
// of a Config (timeout, credentials, decompression, proxy and certificate
// policy) are compared between requests; the client is rebuilt when that
// projection changes. Header and user agent changes never rebuild it.
//
// # Concurrency
//
// A Session hands out fetch ids atomically, but a pipeline traversal expects
// to be the only one driving the session at a time. Use one Session per
// concurrent traversal.
package fetch
