package cmd

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tanpawarit/Chative-Commerce-Tools/mcpserver"
	configx "github.com/tanpawarit/Chative-Commerce-Tools/pkg/config"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := log.Logger.WithContext(cmd.Context())

		app, err := configx.New[AppConfig]("APP")
		if err != nil {
			return err
		}
		c, err := buildCore(ctx, *app)
		if err != nil {
			return err
		}
		defer c.Close()

		s, err := mcpserver.New(c.registry, c.dispatcher)
		if err != nil {
			return err
		}
		log.Info().Msg("mcp server on stdio")
		return server.ServeStdio(s)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
