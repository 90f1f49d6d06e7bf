// Package ledger maintains the append-only message stream of each room.
//
// Every message gets an identifier from a single global sequence,
// assigned atomically at insert. Ordering guarantees are promised only
// within a room: ascending identifier is chronological order there, and
// ties are impossible because identifiers never repeat. Timestamps are
// informational (second resolution) and never used for ordering.
//
// Soft delete and edit exist for the message's owner but sit off the
// posting/polling hot path.
package ledger
