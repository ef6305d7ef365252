// Package securetoken produces high-entropy opaque tokens and their
// storage-safe digests. The plaintext token travels to the user exactly
// once (typically inside a link); only the digest is ever persisted.
package securetoken
