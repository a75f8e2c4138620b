// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the knowledge base to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/timottowitz/covidvaccinedetox/internal/catalog"
	"github.com/timottowitz/covidvaccinedetox/internal/frontmatter"
	"github.com/timottowitz/covidvaccinedetox/internal/knowledge"
	"github.com/timottowitz/covidvaccinedetox/internal/summarize"
)

// Server wraps the MCP server with knowledge-base tools.
type Server struct {
	mcp          *server.MCPServer
	catalog      *catalog.Catalog
	reconciler   *knowledge.Reconciler
	knowledgeDir string
}

// New creates an MCP server with all knowledge-base tools registered.
func New(cat *catalog.Catalog, reconciler *knowledge.Reconciler, knowledgeDir string) *Server {
	s := &Server{catalog: cat, reconciler: reconciler, knowledgeDir: knowledgeDir}

	s.mcp = server.NewMCPServer(
		"CovidVaccineDetox",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_resources",
		mcp.WithDescription("List library resources (PDFs, videos) with their knowledge links."),
		mcp.WithString("tag", mcp.Description("Optional tag substring filter")),
	), s.listResources)

	s.mcp.AddTool(mcp.NewTool("read_knowledge",
		mcp.WithDescription("Read a generated markdown knowledge document by name. "+
			"Documents follow the format described by the knowledge://document-format resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Document file name (e.g. spike-protein-toxicity.md)")),
	), s.readKnowledge)

	s.mcp.AddTool(mcp.NewTool("summarize_text",
		mcp.WithDescription("Produce an extractive summary and key points for arbitrary text."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to summarize")),
	), s.summarizeText)

	s.mcp.AddTool(mcp.NewTool("answer_question",
		mcp.WithDescription("Answer a question from the local knowledge documents with source references."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question to answer")),
	), s.answerQuestion)

	s.mcp.AddTool(mcp.NewTool("reconcile_knowledge",
		mcp.WithDescription("Link knowledge documents to their resources and report the outcome."),
	), s.reconcileKnowledge)

	// Resource: knowledge document format contract.
	s.mcp.AddResource(
		mcp.NewResource("knowledge://document-format", "Knowledge Document Format",
			mcp.WithResourceDescription("Canonical markdown format of generated knowledge documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listResources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := ""
	if t, err := req.RequireString("tag"); err == nil {
		tag = t
	}
	resources := s.catalog.List(ctx, tag)
	out, _ := json.MarshalIndent(resources, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readKnowledge(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name = filepath.Base(name)
	if !strings.HasSuffix(name, ".md") {
		return mcp.NewToolResultError(fmt.Sprintf("not a markdown document: %s", name)), nil
	}
	data, err := os.ReadFile(filepath.Join(s.knowledgeDir, name))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", name)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) summarizeText(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	summary, points := summarize.Summarize(text, 0)
	out, _ := json.MarshalIndent(map[string]any{
		"summary":    summary,
		"key_points": points,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) answerQuestion(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var docs []summarize.Document
	files, err := knowledge.Status(s.knowledgeDir)
	if err == nil {
		for _, f := range files {
			data, err := os.ReadFile(filepath.Join(s.knowledgeDir, f.Name))
			if err != nil {
				continue
			}
			doc := frontmatter.Parse(data)
			title := doc.Title()
			if title == "" {
				title = strings.TrimSuffix(f.Name, ".md")
			}
			docs = append(docs, summarize.Document{
				Title: title,
				Text:  doc.Body,
				Link:  "/knowledge/" + f.Name,
				Type:  "knowledge",
			})
		}
	}

	answer, refs := summarize.Answer(question, docs)
	out, _ := json.MarshalIndent(map[string]any{
		"answer":     answer,
		"references": refs,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) reconcileKnowledge(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.reconciler.Reconcile()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocumentFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "knowledge://document-format",
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
