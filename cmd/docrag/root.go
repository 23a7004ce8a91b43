package main

import (
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/docrag/internal/config"
)

type rootOptions struct {
	env string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "docrag",
		Short: "Chunk, embed, index and retrieve documents",
		Long: `docrag splits documents into overlapping chunks, embeds them through an
OpenAI-compatible provider and serves similarity retrieval over the indexed chunks.

Configuration is read from config/{env}.yaml. ${VAR} references are expanded from
the environment; a .env file in the working directory is loaded first when present.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(),
		"configuration environment, selects config/{env}.yaml")

	root.AddCommand(newServeCmd(opts), newMCPCmd(opts), newVersionCmd())
	return root
}
