// Package tool defines the shared [Tool] descriptor used by every database
// tool set in dbbridge, together with the declarative argument [Schema] that
// the Dispatch Bridge validates incoming calls against.
//
// Each tool-set sub-package (pgtool, redistool) exports a NewTools
// constructor that returns a slice of [Tool] values bound to one Store
// Handle. The application concatenates the slices of the handles that
// connected and freezes them into a [Catalog].
package tool

import "context"

// Handler executes a tool with validated, defaulted arguments and returns the
// Result Payload. The payload must be JSON-serialisable; the bridge renders
// it as indented JSON text. Errors are passed back to the caller unchanged.
//
// Implementations must be safe for concurrent use.
type Handler func(ctx context.Context, args Args) (any, error)

// Tool is an immutable Tool Descriptor.
type Tool struct {
	// Name is the unique identifier callers invoke the tool by, for example
	// "postgres_query".
	Name string

	// Title is an optional short human-readable label.
	Title string

	// Description is shown to callers during tool discovery.
	Description string

	// Schema declares the accepted arguments.
	Schema Schema

	// Handler performs the tool's single logical store operation.
	Handler Handler
}
