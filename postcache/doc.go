// Per-owner cache of post listings with a fixed TTL and a bounded number of
// entries.
//
// Entries are keyed only by owner id, so a lookup for one owner can never
// observe another owner's posts. Expiry is checked on access; the oldest
// inserted entry is evicted when the cache is full.
//
// Readers that fill the cache after a miss take a Ticket before reading the
// repository and store with SetIfCurrent. Any invalidation of that owner in
// between makes the ticket stale and the store is dropped, so a slow read can
// not put pre-write data back after a write has invalidated it.
package postcache
