// Package fanout is an in-process task orchestration core: it fans out
// independent units of work under bounded concurrency, memoizes results in a
// TTL/LRU cache keyed by payload fingerprint, retries transient failures with
// exponential backoff, and offloads lower-priority analysis to a background
// sidecar queue with per-kind workers.
//
// The package itself only holds the configuration surface (Options). The
// moving parts live in subpackages:
//
//   - core/domain: tasks, batch results, metrics, fingerprints, error taxonomy
//   - core/ports: the interfaces callers implement (Assessor, Analyzer) and
//     the ones they consume (ResultCache, Logger, Tracer)
//   - engine/orchestrator: batch fan-out and per-task retry execution
//   - engine/sidecar: the background priority queue
//   - adapters/cache, adapters/logger, adapters/telemetry, adapters/config:
//     concrete implementations of the ports
package fanout
