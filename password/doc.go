// Package password implements password hashing and verification with bcrypt.
//
// # Output format
//
// Digests are standard bcrypt strings ($2a$/$2b$ prefix, cost, salt, hash).
// The work factor is fixed at [Hasher] construction; [DefaultCost] is 12.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy and
// reset flows are enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive digests.
//   - Return errors from verification: malformed digests verify false and
//     surface only through the diagnostic hook.
//   - Import any other package of this module.
package password
