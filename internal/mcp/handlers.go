package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stefanzvkvc/chord"
	"github.com/stefanzvkvc/chord/internal/errors"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	engine *chord.Chord
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(engine *chord.Chord) *Handlers {
	return &Handlers{engine: engine}
}

// Request types for each tool

// SetRequest represents the arguments for context_set.
type SetRequest struct {
	ContextID string         `json:"context_id"`
	State     map[string]any `json:"state"`
}

// GetRequest represents the arguments for context_get.
type GetRequest struct {
	ContextID string `json:"context_id"`
}

// UpdateRequest represents the arguments for context_update.
type UpdateRequest struct {
	ContextID string         `json:"context_id"`
	Updates   map[string]any `json:"updates"`
}

// DeleteRequest represents the arguments for context_delete.
type DeleteRequest struct {
	ContextID string `json:"context_id"`
}

// SyncRequest represents the arguments for context_sync.
type SyncRequest struct {
	ContextID     string `json:"context_id"`
	ClientVersion *int64 `json:"client_version,omitempty"`
}

// ExportRequest represents the arguments for context_export.
type ExportRequest struct {
	ContextID string `json:"context_id"`
}

// CleanupRequest represents the arguments for context_cleanup.
type CleanupRequest struct {
	ContextID string `json:"context_id,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
}

// Handler implementations

// HandleSet handles the context_set tool call.
func (h *Handlers) HandleSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.engine.Set(ctx, input.ContextID, input.State)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGet handles the context_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.engine.Get(ctx, input.ContextID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleUpdate handles the context_update tool call.
func (h *Handlers) HandleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.engine.Update(ctx, input.ContextID, input.Updates)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDelete handles the context_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.engine.Delete(ctx, input.ContextID); err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"context_id": input.ContextID, "deleted": true})
}

// HandleSync handles the context_sync tool call.
func (h *Handlers) HandleSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SyncRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.engine.Sync(ctx, input.ContextID, input.ClientVersion)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the context_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.engine.Export(ctx, input.ContextID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCleanup handles the context_cleanup tool call.
func (h *Handlers) HandleCleanup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CleanupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.engine.Cleanup(ctx, chord.CleanupInput{
		ContextID: input.ContextID,
		BatchSize: input.BatchSize,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if chordErr, ok := err.(*errors.ChordError); ok {
		errorObj := map[string]any{
			"code":    chordErr.Code,
			"message": chordErr.Message,
			"status":  chordErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or backend errors
		if chordErr.Code != errors.ErrInternal && chordErr.Details != nil {
			errorObj["details"] = chordErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
