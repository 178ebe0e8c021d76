// Package memory provides the two-tier event memory for the cognitive
// pipeline: a capacity-bounded short-term store with decay and pruning,
// and an unbounded (cognitive-load-capped) long-term store with
// embedding-based similarity search and pattern completion.
//
// Architecture:
//   - ShortTermStore: recent events in arrival order, bounded capacity,
//     decay-based pruning, consolidation candidate selection
//   - LongTermStore: consolidated events with embeddings, cosine
//     similarity search, retrieval reinforcement, load-cap eviction
//   - Embedder: text-to-vector conversion (mock for tests, ONNX for the
//     local SDK, API-based for production)
//   - Archive: optional durable mirror of consolidated events (chromem
//     for the local SDK, pgvector for production)
//
// Both stores are safe for concurrent use; mutations run under a write
// lock and reads hand out clones so callers never observe a store
// mid-mutation. Decay takes an explicit elapsed duration rather than
// sampling the wall clock, keeping the stores deterministic under test.
package memory
