// Package domain contains the core domain entities and value objects for scrubber.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (HTTP, file system, logging) and
// contains only pure business logic.
//
// # Entities
//
//   - [Document]: The line-oriented training document, terminators included
//   - [Span]: A delimited piece of text on one line that must be rewritten
//   - [Batch]: An ordered slice of span texts sent to the generator together
//   - [Checkpoint]: Persistent per-batch results for resuming a run
//   - [Summary]: Counters describing a finished run
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Focused on business rules and invariants
//   - Testable without mocks or external systems
package domain
