package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpTransport "github.com/kailas-cloud/docrag/internal/transport/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server over stdio",
		Long: `Start the Model Context Protocol server for AI assistant integration.

The server speaks JSON-RPC over stdin and stdout; logs go to stderr. Tools:
ingest_document, search_documents, list_documents, delete_document, and
answer_question when generation.model is configured.

Example client configuration:
  {
    "mcpServers": {
      "docrag": {
        "command": "/path/to/docrag",
        "args": ["mcp", "--env", "prod"]
      }
    }
  }`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx, opts.env)
			if err != nil {
				return err
			}
			defer a.Close()

			server, err := newMCPServer(a)
			if err != nil {
				return err
			}
			return server.Run(ctx)
		},
	}
}

func newMCPServer(a *app) (*mcpTransport.Server, error) {
	ports := &mcpTransport.Ports{
		Documents: a.documents,
		Retriever: a.retriever,
	}
	if a.answerer != nil {
		ports.Answerer = a.answerer
	}
	return mcpTransport.NewServer(ports, a.logger.Named("mcp")) //nolint:wrapcheck // constructor error is descriptive
}
