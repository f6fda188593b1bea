package mcp

import "github.com/mark3labs/mcp-go/mcp"

var setToolDef = mcp.NewTool("context_set",
	mcp.WithDescription("Replace the full state of a context. Creates the context at version 1 if it does not exist; a write that changes nothing keeps the current version."),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Context identifier")),
	mcp.WithObject("state", mcp.Required(), mcp.Description("Full replacement state as a JSON object")),
)

var getToolDef = mcp.NewTool("context_get",
	mcp.WithDescription("Fetch the current snapshot of a context: state, version, and insertion time."),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Context identifier")),
)

var updateToolDef = mcp.NewTool("context_update",
	mcp.WithDescription("Deep-merge a partial state into a context. Nested objects merge recursively; non-object values replace the field."),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Context identifier")),
	mcp.WithObject("updates", mcp.Required(), mcp.Description("Partial state to merge in")),
)

var deleteToolDef = mcp.NewTool("context_delete",
	mcp.WithDescription("Delete a context's snapshot and its entire delta history. Deleting a missing context succeeds."),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Context identifier")),
)

var syncToolDef = mcp.NewTool("context_sync",
	mcp.WithDescription("Catch a client up: returns the full state, a coalesced delta since the client's version, or no change."),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Context identifier")),
	mcp.WithNumber("client_version", mcp.Description("Version the client last saw; omit when the client has no state")),
)

var exportToolDef = mcp.NewTool("context_export",
	mcp.WithDescription("Hand the current snapshot of a context to the configured export callback."),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Context identifier")),
)

var cleanupToolDef = mcp.NewTool("context_cleanup",
	mcp.WithDescription("Run one eviction sweep: expired contexts, aged delta entries, and over-long histories."),
	mcp.WithString("context_id", mcp.Description("Restrict the sweep to one context")),
	mcp.WithNumber("batch_size", mcp.Description("Page size for the context-expiry pass")),
)
