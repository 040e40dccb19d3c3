package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Siddhant-K-code/cabinets/pkg/centroid"
	"github.com/Siddhant-K-code/cabinets/pkg/collective/localmem"
	"github.com/Siddhant-K-code/cabinets/pkg/engine"
	"github.com/Siddhant-K-code/cabinets/pkg/partition"
	"github.com/Siddhant-K-code/cabinets/pkg/shard"
	"github.com/Siddhant-K-code/cabinets/pkg/types"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start Cabinets as an MCP server",
	Long: `Starts Cabinets as a Model Context Protocol (MCP) server.

This allows AI assistants like Claude, Amp, and Cursor to run the k-means
clustering engine directly against a set of vectors they are holding in
context, without shelling out to "cabinets run".

Transports:
  stdio (default) - For local desktop apps (Claude Desktop, Cursor)
  http            - For remote/cloud deployments

Tools exposed:
  cluster_documents - Partition a set of vectors into cabinets and converge
  describe_cabinets - Summarize a clustering result: sizes, centroids, objective

Resources exposed:
  cabinets://system-prompt - System prompt for AI assistants

Example:
  # Local stdio server (Claude Desktop, Cursor, Amp)
  cabinets mcp

  # Remote HTTP server
  cabinets mcp --transport http --port 8081

Configure in Claude Desktop (claude_desktop_config.json):
  {
    "mcpServers": {
      "cabinets": {
        "command": "cabinets",
        "args": ["mcp"]
      }
    }
  }`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport type: stdio or http")
	mcpCmd.Flags().Int("port", 8081, "HTTP server port (for http transport)")
	mcpCmd.Flags().String("host", "0.0.0.0", "HTTP server host (for http transport)")

	mcpCmd.Flags().Int("default-cabinets", 4, "Default cabinet count when a request omits one")
	mcpCmd.Flags().Int("default-max-iterations", 0, "Default iteration cap (0 = no cap)")
}

// MCPServer wraps the MCP server with Cabinets' clustering capabilities.
type MCPServer struct {
	defaultCabinets      int
	defaultMaxIterations int
}

func runMCP(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")
	defaultCabinets, _ := cmd.Flags().GetInt("default-cabinets")
	defaultMaxIterations, _ := cmd.Flags().GetInt("default-max-iterations")

	mcpSrv := &MCPServer{
		defaultCabinets:      defaultCabinets,
		defaultMaxIterations: defaultMaxIterations,
	}

	s := server.NewMCPServer(
		"Cabinets",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(false),
	)

	mcpSrv.registerTools(s)
	mcpSrv.registerResources(s)
	mcpSrv.registerPrompts(s)

	switch transport {
	case "stdio":
		if err := server.ServeStdio(s); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}

	case "http":
		addr := fmt.Sprintf("%s:%d", host, port)
		fmt.Printf("Cabinets MCP server starting on http://%s\n", addr)
		fmt.Printf("  Endpoint: http://%s/mcp\n", addr)
		fmt.Printf("  Health:   http://%s/health\n", addr)
		fmt.Println()

		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok","server":"cabinets-mcp"}`))
		})

		mcpHandler := server.NewStreamableHTTPServer(s, server.WithStateful(true))
		mux.Handle("/mcp", mcpHandler)

		httpServer := &http.Server{
			Addr:    addr,
			Handler: mux,
		}

		if err := httpServer.ListenAndServe(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}

	default:
		return fmt.Errorf("unsupported transport: %s (use 'stdio' or 'http')", transport)
	}

	return nil
}

func (m *MCPServer) registerTools(s *server.MCPServer) {
	clusterTool := mcp.NewTool("cluster_documents",
		mcp.WithDescription(`Partition a set of vectors into cabinets with Lloyd-style k-means and run
to convergence.

WHEN TO USE: Call this when you're holding a batch of embeddings or feature
vectors in context and need them grouped into a fixed number of clusters
("cabinets") — e.g. before summarizing, routing, or deduplicating.

INPUT: An array of documents, each with an integer id and a values vector of
equal length across all documents, plus the desired cabinet count.
OUTPUT: Each document's assigned cabinet, the converged centroids, and the
iteration count / objective value.`),
		mcp.WithArray("documents",
			mcp.Required(),
			mcp.Description("Array of {id: int, values: number[]}. All values arrays must be the same length."),
		),
		mcp.WithNumber("cabinets",
			mcp.Description("Number of cabinets to partition into (default: server's configured default)"),
		),
		mcp.WithNumber("max_iterations",
			mcp.Description("Cap on iterations, 0 for no cap (default: server's configured default)"),
		),
	)
	s.AddTool(clusterTool, m.handleClusterDocuments)

	describeTool := mcp.NewTool("describe_cabinets",
		mcp.WithDescription(`Cluster a set of vectors and return only the summary: per-cabinet
member counts and centroid vectors, without the full per-document assignment
list. Use this when you only need the shape of the clustering, not which
document landed where.`),
		mcp.WithArray("documents",
			mcp.Required(),
			mcp.Description("Array of {id: int, values: number[]}. All values arrays must be the same length."),
		),
		mcp.WithNumber("cabinets",
			mcp.Description("Number of cabinets to partition into (default: server's configured default)"),
		),
	)
	s.AddTool(describeTool, m.handleDescribeCabinets)
}

const systemPromptContent = `You have access to Cabinets, a distributed k-means clustering engine.

IMPORTANT: When you are holding a batch of embeddings or numeric feature
vectors in context and need them grouped:
1. Call cluster_documents with the vectors and the cabinet count you want
2. Use the returned assignments to group, route, or summarize per-cabinet
3. Call describe_cabinets instead if you only need cluster sizes and centroids

The engine runs Lloyd's algorithm to a fixed point: it reassigns each vector
to its nearest centroid and recomputes centroids until no vector moves.`

func (m *MCPServer) registerResources(s *server.MCPServer) {
	systemPrompt := mcp.NewResource(
		"cabinets://system-prompt",
		"Cabinets System Prompt",
		mcp.WithResourceDescription("System prompt that guides AI assistants to use the clustering tools effectively"),
		mcp.WithMIMEType("text/plain"),
	)

	s.AddResource(systemPrompt, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "cabinets://system-prompt",
				MIMEType: "text/plain",
				Text:     systemPromptContent,
			},
		}, nil
	})

	configResource := mcp.NewResource(
		"cabinets://config",
		"Cabinets Configuration",
		mcp.WithResourceDescription("Current server-side clustering defaults"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(configResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		config := map[string]interface{}{
			"default_cabinets":       m.defaultCabinets,
			"default_max_iterations": m.defaultMaxIterations,
		}
		configJSON, _ := json.MarshalIndent(config, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "cabinets://config",
				MIMEType: "application/json",
				Text:     string(configJSON),
			},
		}, nil
	})
}

func (m *MCPServer) registerPrompts(s *server.MCPServer) {
	clusterPrompt := mcp.NewPrompt(
		"cluster-and-explain",
		mcp.WithPromptDescription("Cluster a set of vectors and explain what each cabinet represents"),
		mcp.WithArgument("documents_json", mcp.ArgumentDescription("JSON array of {id, values} documents to cluster")),
		mcp.WithArgument("cabinets", mcp.ArgumentDescription("Desired number of cabinets")),
	)

	s.AddPrompt(clusterPrompt, func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		docsJSON := request.Params.Arguments["documents_json"]
		cabinets := request.Params.Arguments["cabinets"]

		return &mcp.GetPromptResult{
			Description: "Cluster vectors and explain the result",
			Messages: []mcp.PromptMessage{
				{
					Role: mcp.RoleUser,
					Content: mcp.TextContent{
						Type: "text",
						Text: fmt.Sprintf(`I have these documents to cluster into %s cabinets:
%s

Please:
1. Call cluster_documents with these documents and the requested cabinet count
2. For each cabinet, describe what its members seem to have in common
3. Note any cabinet that ended up empty or unusually large`, cabinets, docsJSON),
					},
				},
			},
		}, nil
	})
}

// documentInput is the wire shape of one document in an MCP tool request.
type documentInput struct {
	ID     int       `json:"id"`
	Values []float64 `json:"values"`
}

func parseDocuments(raw interface{}, cabinets int) ([]types.Document, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid documents format: %w", err)
	}

	var inputs []documentInput
	if err := json.Unmarshal(encoded, &inputs); err != nil {
		return nil, fmt.Errorf("failed to parse documents: %w", err)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("documents array is empty")
	}

	subjects := len(inputs[0].Values)
	docs := make([]types.Document, len(inputs))
	for i, in := range inputs {
		if len(in.Values) != subjects {
			return nil, fmt.Errorf("document %d has %d values, expected %d", i, len(in.Values), subjects)
		}
		docs[i] = types.Document{
			ID:       in.ID,
			Subjects: in.Values,
			Assigned: partition.InitialCabinet(in.ID, cabinets),
		}
	}
	return docs, nil
}

// runCluster seeds, partitions, and converges a single in-process worker
// over docs. MCP requests are small and synchronous, so a single rank is
// sufficient; multi-rank runs belong to "cabinets run"/"cabinets coordinate".
func runCluster(ctx context.Context, docs []types.Document, cabinets, maxIterations int) (*engine.Run, *types.RunStats, error) {
	if cabinets <= 0 {
		return nil, nil, fmt.Errorf("cabinets must be positive")
	}
	if len(docs) == 0 {
		return nil, nil, fmt.Errorf("documents array is empty")
	}
	if cabinets > len(docs) {
		return nil, nil, fmt.Errorf("cabinets (%d) cannot exceed document count (%d)", cabinets, len(docs))
	}

	hub := localmem.NewHub(1)
	backend := hub.Backend(0)
	sh := shard.New(docs, cabinets)
	r := engine.New(backend, sh, cabinets, len(docs[0].Subjects))

	stats, err := r.RunToConvergence(ctx, maxIterations)
	if err != nil {
		return nil, nil, err
	}
	stats.Documents = len(docs)
	return r, stats, nil
}

func (m *MCPServer) handleClusterDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	raw, ok := args["documents"]
	if !ok {
		return mcp.NewToolResultError("documents parameter is required"), nil
	}

	cabinets := m.defaultCabinets
	if c := request.GetFloat("cabinets", 0); c > 0 {
		cabinets = int(c)
	}
	maxIterations := m.defaultMaxIterations
	if mi := request.GetFloat("max_iterations", -1); mi >= 0 {
		maxIterations = int(mi)
	}

	docs, err := parseDocuments(raw, cabinets)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r, stats, err := runCluster(ctx, docs, cabinets, maxIterations)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := map[string]interface{}{
		"assignments": formatAssignments(r.Shard.Assignments()),
		"centroids":   formatCentroids(r.Store(), cabinets, len(docs[0].Subjects)),
		"stats": map[string]interface{}{
			"documents":       stats.Documents,
			"iterations":      stats.Iterations,
			"final_objective": stats.FinalObjective(),
		},
	}

	resultJSON, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (m *MCPServer) handleDescribeCabinets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	raw, ok := args["documents"]
	if !ok {
		return mcp.NewToolResultError("documents parameter is required"), nil
	}

	cabinets := m.defaultCabinets
	if c := request.GetFloat("cabinets", 0); c > 0 {
		cabinets = int(c)
	}

	docs, err := parseDocuments(raw, cabinets)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r, stats, err := runCluster(ctx, docs, cabinets, m.defaultMaxIterations)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sizes := make([]int, cabinets)
	for _, a := range r.Shard.Assignments() {
		sizes[a.Cabinet]++
	}

	result := map[string]interface{}{
		"cabinet_sizes":   sizes,
		"centroids":       formatCentroids(r.Store(), cabinets, len(docs[0].Subjects)),
		"iterations":      stats.Iterations,
		"final_objective": stats.FinalObjective(),
	}

	resultJSON, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func formatAssignments(assignments []types.Assignment) []map[string]interface{} {
	out := make([]map[string]interface{}, len(assignments))
	for i, a := range assignments {
		out[i] = map[string]interface{}{"id": a.DocID, "cabinet": a.Cabinet}
	}
	return out
}

func formatCentroids(store *centroid.Store, cabinets, subjects int) [][]float64 {
	out := make([][]float64, cabinets)
	for c := 0; c < cabinets; c++ {
		out[c] = append([]float64(nil), store.Row(c)...)
	}
	return out
}
