package main

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/common"
	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/services/markup"
)

func newMCPServer(store interfaces.StorageManager, importer *markup.Importer, logger arbor.ILogger) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"handoff",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	// Converter tools
	mcpServer.AddTool(createMarkdownToHTMLTool(), handleMarkdownToHTML(store, logger))
	mcpServer.AddTool(createHTMLToMarkdownTool(), handleHTMLToMarkdown(importer, logger))
	mcpServer.AddTool(createSpeakifyTool(), handleSpeakify())

	// Read-only document tools
	mcpServer.AddTool(createListPatientDocumentsTool(), handleListPatientDocuments(store, logger))
	mcpServer.AddTool(createGetDocumentTool(), handleGetDocument(store, logger))

	return mcpServer
}

// createMarkdownToHTMLTool returns the markdown_to_html tool definition
func createMarkdownToHTMLTool() mcp.Tool {
	return mcp.NewTool("markdown_to_html",
		mcp.WithDescription("Render handoff markdown as editor HTML with citation chips"),
		mcp.WithString("markdown",
			mcp.Required(),
			mcp.Description("Document markdown with citation markers like [1] or [1, 2]"),
		),
		mcp.WithString("patient_id",
			mcp.Description("Patient whose records resolve the citation types"),
		),
	)
}

// createHTMLToMarkdownTool returns the html_to_markdown tool definition
func createHTMLToMarkdownTool() mcp.Tool {
	return mcp.NewTool("html_to_markdown",
		mcp.WithDescription("Convert arbitrary HTML (e.g. clipboard content) into handoff markdown"),
		mcp.WithString("html",
			mcp.Required(),
			mcp.Description("HTML fragment"),
		),
	)
}

// createSpeakifyTool returns the speakify tool definition
func createSpeakifyTool() mcp.Tool {
	return mcp.NewTool("speakify",
		mcp.WithDescription("Convert handoff markdown into plain text suited for speech synthesis"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Document markdown"),
		),
	)
}

// createListPatientDocumentsTool returns the list_patient_documents tool definition
func createListPatientDocumentsTool() mcp.Tool {
	return mcp.NewTool("list_patient_documents",
		mcp.WithDescription("List the handoff documents of a patient"),
		mcp.WithString("patient_id",
			mcp.Required(),
			mcp.Description("Patient ID"),
		),
	)
}

// createGetDocumentTool returns the get_document tool definition
func createGetDocumentTool() mcp.Tool {
	return mcp.NewTool("get_document",
		mcp.WithDescription("Retrieve a single handoff document by its unique ID"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document ID (format: doc_{uuid})"),
		),
	)
}
