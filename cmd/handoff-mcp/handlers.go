package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/models"
	"github.com/ternarybob/handoff/internal/services/citation"
	"github.com/ternarybob/handoff/internal/services/markup"
	"github.com/ternarybob/handoff/internal/services/speech"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleMarkdownToHTML implements the markdown_to_html tool
func handleMarkdownToHTML(store interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		md, err := request.RequireString("markdown")
		if err != nil {
			return textResult("Error: markdown parameter is required"), nil
		}

		var records []models.PatientRecord
		if patientID := request.GetString("patient_id", ""); patientID != "" {
			if records, err = store.RecordStorage().ListRecords(ctx, patientID); err != nil {
				logger.Warn().Err(err).Str("patient_id", patientID).Msg("ListRecords failed")
			}
		}

		root := markup.ToView(md, citation.NewResolver(records))
		return textResult(markup.RenderHTML(root)), nil
	}
}

// handleHTMLToMarkdown implements the html_to_markdown tool
func handleHTMLToMarkdown(importer *markup.Importer, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		fragment, err := request.RequireString("html")
		if err != nil {
			return textResult("Error: html parameter is required"), nil
		}

		md, err := importer.Convert(fragment)
		if err != nil {
			logger.Warn().Err(err).Msg("HTML conversion failed")
			return textResult(fmt.Sprintf("Conversion error: %v", err)), nil
		}
		return textResult(md), nil
	}
}

// handleSpeakify implements the speakify tool
func handleSpeakify() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := request.RequireString("text")
		if err != nil {
			return textResult("Error: text parameter is required"), nil
		}
		return textResult(speech.Speakify(text)), nil
	}
}

// handleListPatientDocuments implements the list_patient_documents tool
func handleListPatientDocuments(store interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		patientID, err := request.RequireString("patient_id")
		if err != nil || patientID == "" {
			return textResult("Error: patient_id parameter is required"), nil
		}

		patient, err := store.PatientStorage().GetPatient(ctx, patientID)
		if err != nil {
			return textResult(fmt.Sprintf("Patient not found: %v", err)), nil
		}

		docs, err := store.DocumentStorage().ListDocuments(ctx, patientID)
		if err != nil {
			logger.Error().Err(err).Str("patient_id", patientID).Msg("ListDocuments failed")
			return textResult(fmt.Sprintf("List error: %v", err)), nil
		}

		return textResult(formatDocumentList(patient, docs)), nil
	}
}

// handleGetDocument implements the get_document tool
func handleGetDocument(store interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docID, err := request.RequireString("document_id")
		if err != nil || docID == "" {
			return textResult("Error: document_id parameter is required"), nil
		}

		doc, err := store.DocumentStorage().GetDocument(ctx, docID)
		if err != nil {
			logger.Debug().Err(err).Str("doc_id", docID).Msg("GetDocument failed")
			return textResult(fmt.Sprintf("Document not found: %v", err)), nil
		}

		return textResult(formatDocument(doc)), nil
	}
}
