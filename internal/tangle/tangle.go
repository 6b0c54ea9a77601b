// Package tangle provides ledger clients for reading and attaching
// transactions on the Tangle.
//
// Transactions are grouped by address; an IAM reader fetches every
// transaction at a derived address and treats the result as its candidate
// batch. Three Client implementations are provided:
//   - MemoryTangle: in-process, for testing and development.
//   - PostgresTangle: durable, for single-operator deployments.
//   - NodeClient: read-only access to an IRI-compatible node over HTTP.
//
// CachedFetcher wraps any Fetcher with a TTL cache keyed by address. Every
// backend implements Ping so health checks can probe it.
package tangle
