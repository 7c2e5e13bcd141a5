// Package api exposes the chat client to other agents as MCP tools served
// over stdio.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/OctoberEnd/chatbox/internal/chat"
	"github.com/OctoberEnd/chatbox/internal/upload"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Orchestrator *chat.Orchestrator
	Uploader     *upload.Uploader
	// Session carries conversation history across tool calls within one
	// server lifetime.
	Session *chat.Session
}

// NewMCPServer creates an MCP server exposing the chat client's operations.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"chatbox",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("chatbox: send messages to the configured bot and upload files for attachment."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("send_message",
			mcp.WithDescription("Send a message to the bot and return the final reply with any follow-up suggestions."),
			mcp.WithString("text", mcp.Description("Message text"), mcp.Required()),
			mcp.WithArray("file_ids", mcp.Description("Optional server file ids to attach")),
		),
		mcpSendMessage(deps),
	)

	s.AddTool(
		mcp.NewTool("upload_file",
			mcp.WithDescription("Upload a local file and return the server-issued file id for later attachment."),
			mcp.WithString("path", mcp.Description("Path of the file to upload"), mcp.Required()),
			mcp.WithString("kind", mcp.Description("Attachment kind: file (default) or image")),
		),
		mcpUploadFile(deps),
	)

	return s
}

func mcpSendMessage(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		turn := &chat.Turn{Text: text}
		for _, id := range req.GetStringSlice("file_ids", nil) {
			att := chat.NewAttachment(id, "", chat.AttachmentFile)
			att.Status = chat.StatusUploaded
			att.FileID = id
			turn.Attachments = append(turn.Attachments, att)
		}

		reply := deps.Orchestrator.SubmitTurn(ctx, deps.Session, turn, nil)
		if reply.Err != "" {
			return mcpError(reply.Err), nil
		}

		out := struct {
			Text        string   `json:"text"`
			Suggestions []string `json:"suggestions,omitempty"`
		}{Text: reply.Text, Suggestions: reply.Suggestions}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal reply: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpUploadFile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcpError("path is required"), nil
		}
		kind := req.GetString("kind", chat.AttachmentFile)
		if kind != chat.AttachmentFile && kind != chat.AttachmentImage {
			return mcpError(fmt.Sprintf("unknown attachment kind %q", kind)), nil
		}

		att := chat.NewAttachment(filepath.Base(path), path, kind)
		if err := deps.Uploader.Upload(ctx, att); err != nil {
			return mcpError(fmt.Sprintf("upload failed: %v", err)), nil
		}
		return mcpText(att.FileID), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
