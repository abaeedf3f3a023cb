// Package revocation defines how issued tokens are made unusable before they expire.
//
// A [Strategy] records revocations and answers validity checks for decoded claims.
// Strategies are interchangeable and injected into the engine at build time:
//
//   - [Null] never revokes anything.
//   - [Denylist] keys on the token identifier (jti) and delegates storage to a
//     [Store]. [MemoryStore] is process-local; the redisstore, gormstore and
//     mongostore subpackages are shared across processes.
//   - [Cutoff] invalidates every token of a subject issued at or before a point in
//     time, with an optional global cutoff for a full logout.
//
// Revoke is idempotent for all strategies and safe for concurrent use.
package revocation
