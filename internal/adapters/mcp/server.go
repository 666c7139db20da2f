package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

const maxToolFileBytes = 25 << 20

type Config struct {
	Name    string
	Version string
}

// Services are the inbound ports exposed as tools.
type Services struct {
	Analyzer   ports.DocumentAnalyzer
	Duplicates ports.DuplicateDetector
	Reader     ports.DocumentReader
}

// Server exposes the analysis pipeline as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	services  Services
	readFile  func(string) ([]byte, error)
}

func NewServer(config Config, services Services) *Server {
	if config.Name == "" {
		config.Name = "docintel"
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		services:  services,
		readFile:  os.ReadFile,
	}

	quickTool := mcp.NewTool("quick_analysis",
		mcp.WithDescription("Fast pre-upload check of a file: exact and visual duplicates plus a filename/mime relevance check. Returns the analysis result as JSON."),
		mcp.WithString("path",
			mcp.Description("Path of a local file to analyse. Either path or content_base64 is required."),
		),
		mcp.WithString("content_base64",
			mcp.Description("Base64 file content, used when path is empty"),
		),
		mcp.WithString("filename",
			mcp.Description("Original file name; defaults to the base name of path"),
		),
		mcp.WithString("mime_type",
			mcp.Description("Mime type; sniffed from content when empty"),
		),
		mcp.WithString("declared_context",
			mcp.Required(),
			mcp.Description("Declared business purpose, e.g. expense_receipt, invoice, business_card"),
		),
		mcp.WithString("company_id",
			mcp.Description("Company whose documents are compared"),
		),
		mcp.WithString("user_id",
			mcp.Description("Uploading user"),
		),
	)
	mcpServer.AddTool(quickTool, s.quickAnalysisHandler)

	duplicatesTool := mcp.NewTool("detect_duplicates",
		mcp.WithDescription("Check up to 20 stored documents for duplicates among their owners' documents"),
		mcp.WithArray("document_ids",
			mcp.Required(),
			mcp.Description("Stored document IDs"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("temporal_tolerance_days",
			mcp.Description("Look-back window in days (default: 30)"),
		),
		mcp.WithString("duplicate_scope",
			mcp.Description("company or user (default: company)"),
		),
		mcp.WithString("company_id",
			mcp.Description("Caller company; documents of other companies are reported as not found"),
		),
		mcp.WithString("user_id",
			mcp.Description("Caller user, used when company_id is empty"),
		),
	)
	mcpServer.AddTool(duplicatesTool, s.detectDuplicatesHandler)

	getDocTool := mcp.NewTool("get_document",
		mcp.WithDescription("Get a stored document record, including its latest analysis"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Document ID to retrieve"),
		),
		mcp.WithString("company_id",
			mcp.Description("Caller company; documents of other companies are reported as not found"),
		),
		mcp.WithString("user_id",
			mcp.Description("Caller user, used when company_id is empty"),
		),
	)
	mcpServer.AddTool(getDocTool, s.getDocumentHandler)

	return s
}

func (s *Server) quickAnalysisHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.services.Analyzer == nil {
		return mcp.NewToolResultError("quick analysis is not configured"), nil
	}
	declared, err := domain.ParseDocumentContext(req.GetString("declared_context", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, name, err := s.loadInput(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	meta := domain.FileMeta{
		OriginalName: name,
		MimeType:     req.GetString("mime_type", ""),
		Size:         int64(len(data)),
	}
	identity := domain.Identity{
		CompanyID: req.GetString("company_id", ""),
		UserID:    req.GetString("user_id", ""),
	}

	result, err := s.services.Analyzer.QuickAnalysis(ctx, data, meta, declared, identity)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("quick analysis failed: %v", err)), nil
	}
	return jsonResult(result)
}

func (s *Server) detectDuplicatesHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.services.Duplicates == nil {
		return mcp.NewToolResultError("duplicate detection is not configured"), nil
	}
	ids := req.GetStringSlice("document_ids", nil)
	if len(ids) == 0 {
		return mcp.NewToolResultError("document_ids parameter is required"), nil
	}
	identity, err := callerIdentity(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	options := domain.DefaultAnalysisOptions()
	options.TemporalToleranceDays = req.GetInt("temporal_tolerance_days", options.TemporalToleranceDays)
	if scope := strings.TrimSpace(req.GetString("duplicate_scope", "")); scope != "" {
		options.DuplicateScope = domain.DuplicateScope(strings.ToLower(scope))
	}

	results, err := s.services.Duplicates.DetectDuplicatesAcross(ctx, identity, ids, options)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("detect duplicates failed: %v", err)), nil
	}
	return jsonResult(results)
}

func (s *Server) getDocumentHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.services.Reader == nil {
		return mcp.NewToolResultError("document lookup is not configured"), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	identity, err := callerIdentity(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := s.services.Reader.GetByID(ctx, id)
	if err == nil && !doc.OwnedBy(identity) {
		err = domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("document not found: %s", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("get document failed: %v", err)), nil
	}
	return jsonResult(doc)
}

func callerIdentity(req mcp.CallToolRequest) (domain.Identity, error) {
	identity := domain.Identity{
		CompanyID: strings.TrimSpace(req.GetString("company_id", "")),
		UserID:    strings.TrimSpace(req.GetString("user_id", "")),
	}
	if identity.CompanyID == "" && identity.UserID == "" {
		return domain.Identity{}, errors.New("company_id or user_id parameter is required")
	}
	return identity, nil
}

func (s *Server) loadInput(req mcp.CallToolRequest) ([]byte, string, error) {
	name := strings.TrimSpace(req.GetString("filename", ""))
	if path := strings.TrimSpace(req.GetString("path", "")); path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, "", fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Size() > maxToolFileBytes {
			return nil, "", fmt.Errorf("%s exceeds %d bytes", path, maxToolFileBytes)
		}
		data, err := s.readFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", path, err)
		}
		if name == "" {
			name = filepath.Base(path)
		}
		return data, name, nil
	}

	encoded := strings.TrimSpace(req.GetString("content_base64", ""))
	if encoded == "" {
		return nil, "", fmt.Errorf("path or content_base64 is required")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("decode content_base64: %w", err)
	}
	if name == "" {
		return nil, "", fmt.Errorf("filename is required with content_base64")
	}
	return data, name, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
