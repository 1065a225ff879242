// Package tasks builds recommendation playlists across Spotify and YouTube Music with real-time progress reporting.
//
// # Pipeline
//
// [Generator.Generate] runs one generation for one user:
//
//  1. Seed fetch: the most recent tracks on the target service and, when it is configured,
//     on the other service (concurrently, the other side is best-effort)
//  2. Seed resolution: [Resolver.Fill] gives every seed its identity on the other service
//  3. Aggregation: [Aggregator.Aggregate] runs the recommenders and resolves their output on the target
//  4. Assembly: [Assembler.Assemble] dedups, shuffles, creates the playlist and adds items in batches
//
// # Identity resolution
//
// [Resolver] searches the target catalog with a title (and artist) query and accepts the first
// candidate whose duration is within a few seconds of the known one. Spotify candidates flagged
// explicit are preferred over clean ones. A track with no duration takes the first result.
// Misses are logged and never fail the run.
//
// # Recommenders
//
// Three implementations of [Recommender]:
//   - [GraphWalk] : YouTube Music's "up next" list after each seed, deduplicated per seed
//   - [Catalog] : Spotify recommendations for chunks of up to five seeds, or one seed per call in standalone mode
//   - [Similarity] : Last.fm similar tracks with a cap on results by the seed's own artist
//
// # Progress Reporting
//
// Operations accept an optional channel of [ProgressUpdate]. Updates use select with default
// so a slow reader never blocks the pipeline.
//
// # Locking
//
// A [GenerationLock] (repositories.GenerationStore in production) is acquired before anything
// runs and released on every exit path. Release carries the token Acquire returned, so a run whose
// lock was taken over as stale cannot free the lock of the run that replaced it. [RunRecorder]
// keeps run history and is best-effort.
package tasks
