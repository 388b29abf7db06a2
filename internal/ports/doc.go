// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// In Clean Architecture / Hexagonal Architecture, ports are the boundaries
// between the application core and the outside world. They define what the
// application needs from external systems without specifying how those needs
// are fulfilled.
//
// # Port Interfaces
//
//   - [DocumentStore]: Reads the input document and writes the output document
//   - [Generator]: Calls the external text-generation service
//   - [CheckpointStore]: Persists and loads per-batch progress
//   - [EventEmitter]: Receives batch and run notifications
//   - [Logger]: Structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement these interfaces
// with concrete implementations (file system, sqlite, Gemini, zerolog, etc.).
package ports
