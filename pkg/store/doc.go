// Package store implements the in-memory entry store at the heart of the
// call-reduction engine: the single source of truth for "have we already
// answered this scene".
//
// Entries are keyed by perceptual fingerprint and move through a small
// state machine per call cycle:
//
//	Pending -> Ready   (upstream call succeeded)
//	Pending -> Failed  (upstream call failed after retries)
//
// A Failed entry may later be replaced by a fresh Pending. All mutations
// go through the Store's API and are serialized per fingerprint shard;
// unrelated fingerprints never contend on the same lock.
//
// # Single flight
//
//	ticket, already := s.BeginPending(fp)
//	if already {
//		// someone else is the leader; suspend on the ticket
//		text, err := ticket.Wait(ctx)
//		...
//	}
//	// this caller is the leader and must call upstream, then
//	s.Complete(ticket, text) // or s.Fail(ticket, err)
//
// Exactly one concurrent caller per fingerprint becomes the leader; every
// waiter observes the same terminal result or error exactly once.
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - scene_cache_hits_total - confirmed cache hits (via Touch)
//   - scene_cache_misses_total - lookups that found nothing usable
//   - scene_cache_entries - current entry count
package store
