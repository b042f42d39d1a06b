// Package tor runs an embedded Tor daemon whose SOCKS port serves as the
// proxy of fetch sessions, so onion services can be fetched and crawled
// without a separately installed Tor.
//
// Design decision: We use tornago to launch and supervise the tor process
// instead of talking to a system daemon. fetchq only needs the SOCKS
// address; the transport itself stays the regular proxy support of the
// fetch package.
package tor
