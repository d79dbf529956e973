// Package journey implements the read and write operations on the journey
// graph document.
//
// A Repository wraps a store.GraphStore. Reads never fail under the default
// ReadPolicyRecover: a missing, unreadable or corrupt document is replaced by
// the empty graph. ReadPolicyStrict still treats a missing document as empty
// but returns corruption and I/O failures to the caller.
//
// Writes replace the whole document and stamp updatedAt. Writes from one
// process are serialized; WriteIfMatch adds an ETag precondition so callers
// can detect that another writer got there first. Without a precondition the
// last completed write wins.
package journey
