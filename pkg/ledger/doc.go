// Package ledger provides type-safe Go definitions and Redis schema patterns
// for the Keel project ledger.
//
// # Overview
//
// The ledger is the central shared state system where all Keel components
// (verification engine, drift monitor, resolution coordinator, CLI) interact
// via well-defined data structures stored in Redis. It holds the canonical
// project truth, the append-only version history, the violation pattern store,
// the bounded drift report history and all resolution workflows.
//
// # Core Concepts
//
// The Project Truth is the canonical statement of what the project is
// building, for whom, and explicitly what it is not. Every work item is
// scored against it. The truth is only ever replaced through the version
// manager - the stored document plus its content hash form a compare-and-swap
// guard, so concurrent writers surface ErrConflict instead of silently
// overwriting each other.
//
// Items are immutable work artifacts (backlog entries, sprint tasks,
// documents, decisions, sprint goals) appended to per-category logs.
//
// Violation Patterns are recurring categories of confidence trigger, keyed by
// type plus signature. Pattern writes are atomic read-modify-write operations
// under a WATCH transaction so concurrent learners never lose updates.
//
// Drift Reports aggregate each drift cycle and live in a FIFO history capped
// at ReportHistoryCap entries.
//
// # Multi-Project Support
//
// All Redis keys and Pub/Sub channels are namespaced by project name to
// enable multiple Keel projects to safely coexist on a single Redis server
// without interference.
//
// # Usage Example
//
//	import "github.com/dyluth/keel/pkg/ledger"
//
//	client, err := ledger.NewClient(&redis.Options{Addr: "localhost:6379"}, "my-project")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	item := &ledger.Item{
//		ID:          uuid.New().String(),
//		Title:       "Add invoice export",
//		Description: "Export monthly invoices as CSV",
//		Category:    ledger.CategoryBacklog,
//		CreatedAtMs: time.Now().UnixMilli(),
//	}
//	if err := client.AppendItem(ctx, item); err != nil {
//		log.Fatal(err)
//	}
//
// # Redis Schema
//
// All Redis keys follow the pattern: keel:{project}:{entity}[:{id}]
//
// Truth document: keel:{project}:truth:doc (+ keel:{project}:truth:hash)
// Item logs: keel:{project}:items:{category}
// Versions: keel:{project}:version:{id}, index at keel:{project}:versions
// Patterns: keel:{project}:pattern:{type}/{signature}
// Reports: keel:{project}:reports (bounded list)
// Resolutions: keel:{project}:resolution:{id}
//
// Pub/Sub channels: keel:{project}:drift_events, keel:{project}:violation_events
//
// # Design Principles
//
//   - Type Safety: all data structures have strong typing with validation methods
//   - Immutability: version snapshots are append-only and never edited
//   - No Silent Loss: every contended write surfaces ErrConflict to its caller
//   - Isolation: project namespacing prevents cross-project interference
package ledger
