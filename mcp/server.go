// Package mcp exposes the price collection workflow as MCP (Model Context
// Protocol) tools served over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperengineering/pricecheck"
	pcsync "github.com/hyperengineering/pricecheck/internal/sync"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with the price collection tools.
type Server struct {
	client    *pricecheck.Client
	mcpServer *server.MCPServer
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo represents a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var pathArgs = [pricecheck.NumLevels]string{"area", "division", "family", "category", "group"}

// NewServer creates a new MCP server with the tools registered.
func NewServer(client *pricecheck.Client) *Server {
	s := &Server{client: client}

	s.mcpServer = server.NewMCPServer(
		"pricecheck",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// Run starts the MCP server, reading from stdin and writing to stdout.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a raw JSON-RPC message and returns a response.
// This is primarily for testing the MCP protocol layer.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "pricecheck_search", Description: "Search the products of a competitor shop by description, EAN or brand"},
		{Name: "pricecheck_scan", Description: "Process a scanned EAN, creating the product when the shop does not list it"},
		{Name: "pricecheck_create", Description: "Create a product without a barcode"},
		{Name: "pricecheck_collect", Description: "Record the observed price of a product"},
		{Name: "pricecheck_discard", Description: "Discard the collected price of a product"},
		{Name: "pricecheck_pending", Description: "List collected prices waiting for upload"},
		{Name: "pricecheck_hierarchy", Description: "Browse the product hierarchy of a shop"},
		{Name: "pricecheck_sync", Description: "Upload collected prices and refresh the local data from the backend"},
		{Name: "pricecheck_stats", Description: "Show local store statistics"},
	}
}

// CallTool executes a tool by name with the given arguments.
// This is used for testing and direct invocation.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case "pricecheck_search":
		return s.handleSearch(ctx, args)
	case "pricecheck_scan":
		return s.handleScan(ctx, args)
	case "pricecheck_create":
		return s.handleCreate(ctx, args)
	case "pricecheck_collect":
		return s.handleCollect(ctx, args)
	case "pricecheck_discard":
		return s.handleDiscard(ctx, args)
	case "pricecheck_pending":
		return s.handlePending(ctx, args)
	case "pricecheck_hierarchy":
		return s.handleHierarchy(ctx, args)
	case "pricecheck_sync":
		return s.handleSync(ctx, args)
	case "pricecheck_stats":
		return s.handleStats(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func scopeOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("customer",
			mcp.Description("Competitor customer number"),
		),
		mcp.WithString("assortment",
			mcp.Description("Assortment code"),
		),
	}
}

func pathOptions() []mcp.ToolOption {
	opts := make([]mcp.ToolOption, 0, pricecheck.NumLevels)
	for l, name := range pathArgs {
		opts = append(opts, mcp.WithString(name,
			mcp.Description(pricecheck.Level(l).String()+" key"),
		))
	}
	return opts
}

func newTool(name, description string, opts ...[]mcp.ToolOption) mcp.Tool {
	all := []mcp.ToolOption{mcp.WithDescription(description)}
	for _, o := range opts {
		all = append(all, o...)
	}
	return mcp.NewTool(name, all...)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(newTool("pricecheck_search",
		"Search the products of a competitor shop. The query matches the material description, EAN or brand, case-insensitively. Returns sync keys usable with pricecheck_collect.",
		[]mcp.ToolOption{mcp.WithString("query",
			mcp.Description("Text to search for"),
			mcp.Required(),
		)},
		scopeOptions(),
	), s.wrap(s.handleSearch))

	s.mcpServer.AddTool(newTool("pricecheck_scan",
		"Process a scanned barcode. An existing product of the shop with that EAN is returned; otherwise a new product is created and must be classified when its price is collected.",
		[]mcp.ToolOption{mcp.WithString("ean",
			mcp.Description("13-digit EAN barcode"),
			mcp.Required(),
		)},
		scopeOptions(),
		pathOptions(),
	), s.wrap(s.handleScan))

	s.mcpServer.AddTool(newTool("pricecheck_create",
		"Create a product without a barcode. Hierarchy levels given are kept; the rest are marked pending.",
		scopeOptions(),
		pathOptions(),
	), s.wrap(s.handleCreate))

	s.mcpServer.AddTool(newTool("pricecheck_collect",
		"Record the observed price of a product and flag it for upload. Only the given fields change. Prices accept a comma or a dot as decimal separator; dates use YYYY-MM-DD.",
		[]mcp.ToolOption{
			mcp.WithString("sync_key",
				mcp.Description("Sync key of the product"),
				mcp.Required(),
			),
			mcp.WithString("price",
				mcp.Description("Normal shelf price"),
			),
			mcp.WithString("promo_price",
				mcp.Description("Promotional price"),
			),
			mcp.WithString("promo_type",
				mcp.Description("Promotion type"),
			),
			mcp.WithString("promo_start",
				mcp.Description("Promotion start date"),
			),
			mcp.WithString("promo_end",
				mcp.Description("Promotion end date"),
			),
			mcp.WithString("description",
				mcp.Description("Material description"),
			),
			mcp.WithString("brand",
				mcp.Description("Brand"),
			),
			mcp.WithString("notes",
				mcp.Description("Free-text observations"),
			),
		},
		pathOptions(),
	), s.wrap(s.handleCollect))

	s.mcpServer.AddTool(newTool("pricecheck_discard",
		"Discard the collected price of a product. The product stays in the catalogue.",
		[]mcp.ToolOption{mcp.WithString("sync_key",
			mcp.Description("Sync key of the product"),
			mcp.Required(),
		)},
	), s.wrap(s.handleDiscard))

	s.mcpServer.AddTool(newTool("pricecheck_pending",
		"List collected prices waiting for upload.",
	), s.wrap(s.handlePending))

	s.mcpServer.AddTool(newTool("pricecheck_hierarchy",
		"Browse the hierarchy of a shop. Given the keys selected so far, lists the options of the next level, or the products once every level is chosen.",
		scopeOptions(),
		pathOptions(),
	), s.wrap(s.handleHierarchy))

	s.mcpServer.AddTool(newTool("pricecheck_sync",
		"Upload collected prices and replace the local data with a fresh copy from the backend. Requires PRICECHECK_BACKEND_URL. When some uploads fail the refresh only runs if proceed_on_failure is true; records not uploaded are then lost.",
		[]mcp.ToolOption{mcp.WithBoolean("proceed_on_failure",
			mcp.Description("Continue with the refresh after a failed or partial upload (default: false)"),
		)},
	), s.wrap(s.handleSync))

	s.mcpServer.AddTool(newTool("pricecheck_stats",
		"Show local store statistics: documents per entity, pending uploads and the last sync time.",
	), s.wrap(s.handleStats))
}

type handlerFunc func(ctx context.Context, args map[string]any) (*ToolResult, error)

// wrap adapts an internal handler to the mcp-go handler signature.
func (s *Server) wrap(h handlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := h(ctx, req.GetArguments())
		if err != nil {
			return nil, err
		}
		return toMCPResult(result), nil
	}
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: r.Content,
			},
		},
	}
	if r.IsError {
		result.IsError = true
	}
	return result
}

func errorResult(format string, a ...any) *ToolResult {
	return &ToolResult{Content: fmt.Sprintf(format, a...), IsError: true}
}

// Internal handlers

func (s *Server) handleSearch(ctx context.Context, args map[string]any) (*ToolResult, error) {
	query := stringArg(args, "query")
	if query == "" {
		return errorResult("query is required"), nil
	}

	products, err := s.client.Catalog().Search(scopeArg(args), query)
	if err != nil {
		return errorResult("search failed: %v", err), nil
	}
	return &ToolResult{Content: formatProducts(products, "No matching products found.")}, nil
}

func (s *Server) handleScan(ctx context.Context, args map[string]any) (*ToolResult, error) {
	ean := stringArg(args, "ean")
	if ean == "" {
		return errorResult("ean is required"), nil
	}

	p, created, err := s.client.Catalog().ProcessBarcode(ctx, ean, collectContextArg(args))
	if err != nil {
		return errorResult("scan failed: %v", err), nil
	}

	header := "Found product"
	if created {
		header = "Created product"
	}
	return &ToolResult{Content: header + ":\n" + formatProduct(p)}, nil
}

func (s *Server) handleCreate(ctx context.Context, args map[string]any) (*ToolResult, error) {
	p, err := s.client.Catalog().CreateManual(ctx, collectContextArg(args))
	if err != nil {
		return errorResult("create failed: %v", err), nil
	}
	return &ToolResult{Content: "Created product:\n" + formatProduct(p)}, nil
}

func (s *Server) handleCollect(ctx context.Context, args map[string]any) (*ToolResult, error) {
	key := stringArg(args, "sync_key")
	if key == "" {
		return errorResult("sync_key is required"), nil
	}

	p, err := s.client.Repository().FindBySyncKey(key)
	if err != nil {
		return errorResult("collect failed: %v", err), nil
	}
	if p == nil {
		return errorResult("product not found: %s", key), nil
	}

	obs, err := observationArgs(args, pricecheck.ObservationFor(p))
	if err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}

	saved, err := s.client.Catalog().SaveObservation(ctx, p.ID, obs)
	if err != nil {
		return errorResult("collect failed: %v", err), nil
	}
	return &ToolResult{Content: "Price collected:\n" + formatProduct(saved)}, nil
}

func (s *Server) handleDiscard(ctx context.Context, args map[string]any) (*ToolResult, error) {
	key := stringArg(args, "sync_key")
	if key == "" {
		return errorResult("sync_key is required"), nil
	}

	p, err := s.client.Catalog().DiscardObservation(ctx, key)
	if err != nil {
		return errorResult("discard failed: %v", err), nil
	}
	return &ToolResult{Content: "Collected price discarded:\n" + formatProduct(p)}, nil
}

func (s *Server) handlePending(ctx context.Context, args map[string]any) (*ToolResult, error) {
	products, err := s.client.Repository().SelectPending()
	if err != nil {
		return errorResult("pending failed: %v", err), nil
	}
	return &ToolResult{Content: formatProducts(products, "No collected prices waiting for upload.")}, nil
}

func (s *Server) handleHierarchy(ctx context.Context, args map[string]any) (*ToolResult, error) {
	scope := scopeArg(args)
	sel, err := s.client.Hierarchy().NewSelection(scope)
	if err != nil {
		return errorResult("hierarchy failed: %v", err), nil
	}

	// Walk down the levels given; the first gap is the level to choose next.
	next := pricecheck.LevelArea
	for _, l := range pricecheck.Levels() {
		key := stringArg(args, pathArgs[l])
		if key == "" {
			break
		}
		if err := sel.Select(l, key); err != nil {
			return errorResult("hierarchy failed: %v", err), nil
		}
		next = l + 1
	}

	if !next.IsValid() {
		products, err := s.client.Catalog().ProductsIn(scope, sel.Path())
		if err != nil {
			return errorResult("hierarchy failed: %v", err), nil
		}
		return &ToolResult{Content: formatProducts(products, "No products in this product group.")}, nil
	}

	opts := sel.Options(next)
	if len(opts) == 0 {
		return &ToolResult{Content: fmt.Sprintf("No %s options.", next)}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %s options (pass as %q):\n\n", len(opts), next, pathArgs[next])
	for _, n := range opts {
		fmt.Fprintf(&sb, "  %s  %s\n", n.Key, n.Text)
	}
	return &ToolResult{Content: sb.String()}, nil
}

func (s *Server) handleSync(ctx context.Context, args map[string]any) (*ToolResult, error) {
	proceed, _ := args["proceed_on_failure"].(bool)

	syncer := pcsync.ForClient(s.client, pcsync.WithConfirmer(pcsync.Always(proceed)))
	report, err := syncer.Sync(ctx)
	switch {
	case errors.Is(err, pricecheck.ErrOffline):
		return errorResult("sync unavailable: backend not configured or unreachable"), nil
	case errors.Is(err, pricecheck.ErrSyncAborted):
		return &ToolResult{Content: formatSyncReport(report, err), IsError: true}, nil
	case err != nil:
		return errorResult("sync failed: %v", err), nil
	}
	return &ToolResult{Content: formatSyncReport(report, nil)}, nil
}

func (s *Server) handleStats(ctx context.Context, args map[string]any) (*ToolResult, error) {
	stats, err := s.client.Stats()
	if err != nil {
		return errorResult("stats failed: %v", err), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Profile: %s\n", s.client.Config().Profile)
	fmt.Fprintf(&sb, "Documents: %d\n", stats.DocumentCount)
	for _, name := range pricecheck.DownloadSets() {
		if n := stats.ByEntity[name]; n > 0 {
			fmt.Fprintf(&sb, "  %s: %d\n", name, n)
		}
	}
	fmt.Fprintf(&sb, "Pending upload: %d\n", stats.PendingSync)
	if stats.LastSync.IsZero() {
		sb.WriteString("Last sync: never\n")
	} else {
		fmt.Fprintf(&sb, "Last sync: %s\n", stats.LastSync.Format("2006-01-02 15:04:05"))
	}
	return &ToolResult{Content: sb.String()}, nil
}

// Argument helpers

// stringArg returns args[name] as a string. Numbers are accepted for
// fields such as prices that clients may send unquoted.
func stringArg(args map[string]any, name string) string {
	switch v := args[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func scopeArg(args map[string]any) pricecheck.Scope {
	return pricecheck.Scope{
		Customer:   stringArg(args, "customer"),
		Assortment: stringArg(args, "assortment"),
	}
}

func pathArg(args map[string]any) (pricecheck.Path, bool) {
	var path pricecheck.Path
	set := false
	for l, name := range pathArgs {
		if v := stringArg(args, name); v != "" {
			path[l] = pricecheck.Assigned(v)
			set = true
		}
	}
	return path, set
}

func collectContextArg(args map[string]any) pricecheck.CollectContext {
	path, set := pathArg(args)
	return pricecheck.CollectContext{Scope: scopeArg(args), Path: path, FromHierarchy: set}
}

// observationArgs applies the arguments present in args to obs.
func observationArgs(args map[string]any, obs pricecheck.Observation) (pricecheck.Observation, error) {
	var err error
	if v := stringArg(args, "price"); v != "" {
		if obs.NormalPrice, err = pricecheck.ParsePrice(v); err != nil {
			return obs, err
		}
	}
	if v := stringArg(args, "promo_price"); v != "" {
		if obs.PromoPrice, err = pricecheck.ParsePrice(v); err != nil {
			return obs, err
		}
	}
	if obs.PromoStartDate, err = dateArg(args, "promo_start", obs.PromoStartDate); err != nil {
		return obs, err
	}
	if obs.PromoEndDate, err = dateArg(args, "promo_end", obs.PromoEndDate); err != nil {
		return obs, err
	}

	strs := map[string]*string{
		"promo_type":  &obs.PromoType,
		"description": &obs.MaterialDescription,
		"brand":       &obs.Brand,
		"notes":       &obs.Observations,
	}
	for name, dst := range strs {
		if v := stringArg(args, name); v != "" {
			*dst = v
		}
	}

	if path, set := pathArg(args); set {
		for l, k := range path {
			if k.IsAssigned() {
				obs.Path[l] = k
			}
		}
	}
	return obs, nil
}

func dateArg(args map[string]any, name string, current pricecheck.DateTime) (pricecheck.DateTime, error) {
	v := stringArg(args, name)
	if v == "" {
		return current, nil
	}
	t, ok := pricecheck.ParseDateTime(v)
	if !ok {
		return current, &pricecheck.ValidationError{Field: name, Message: fmt.Sprintf("invalid date %q", v)}
	}
	return pricecheck.At(t), nil
}

// Formatting functions

func formatProduct(p *pricecheck.Product) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  Sync key: %s\n", p.SyncKey)
	fmt.Fprintf(&sb, "  Description: %s\n", p.MaterialDescription)
	if p.EAN != "" {
		fmt.Fprintf(&sb, "  EAN: %s\n", p.EAN)
	}
	if p.Brand != "" {
		fmt.Fprintf(&sb, "  Brand: %s\n", p.Brand)
	}
	if p.PendingClassification() {
		sb.WriteString("  Hierarchy: pending classification\n")
	} else {
		fmt.Fprintf(&sb, "  Hierarchy: %s\n", formatPath(p))
	}
	if p.IsCollected {
		fmt.Fprintf(&sb, "  Price: %s %s", p.NormalPrice.Fixed2(), p.Currency)
		if p.PromoPrice.IsPositive() {
			fmt.Fprintf(&sb, " (promo %s)", p.PromoPrice.Fixed2())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatPath(p *pricecheck.Product) string {
	texts := p.Texts()
	parts := make([]string, 0, pricecheck.NumLevels)
	for _, l := range pricecheck.Levels() {
		part := p.Path().Get(l).Value()
		if texts[l] != "" {
			part += " " + texts[l]
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " / ")
}

func formatProducts(products []*pricecheck.Product, empty string) string {
	if len(products) == 0 {
		return empty
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d products:\n\n", len(products))
	for _, p := range products {
		sb.WriteString(formatProduct(p))
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatSyncReport(r *pcsync.Report, err error) string {
	var sb strings.Builder
	if err != nil {
		sb.WriteString("Sync aborted; local data kept.\n")
	} else {
		sb.WriteString("Sync completed.\n")
	}
	if r == nil {
		return sb.String()
	}

	fmt.Fprintf(&sb, "  Pending: %d\n", r.Pending)
	if r.Upload != nil {
		fmt.Fprintf(&sb, "  Uploaded: %d of %d\n", r.Upload.Success, r.Upload.Total)
	}
	if r.UploadError != "" {
		fmt.Fprintf(&sb, "  Upload error: %s\n", r.UploadError)
	}
	if r.Upload != nil {
		for _, e := range r.Upload.Errors {
			fmt.Fprintf(&sb, "    - %s\n", e)
		}
	}
	if err == nil {
		fmt.Fprintf(&sb, "  Downloaded: %d documents in %d sets\n", r.Downloaded(), len(r.Downloads))
		if rej := r.Rejected(); len(rej) > 0 {
			fmt.Fprintf(&sb, "  Rejected: %d\n", len(rej))
		}
	} else if r.Decision != nil {
		sb.WriteString("Call pricecheck_sync with proceed_on_failure=true to refresh anyway.\n")
	}
	return sb.String()
}
