package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
	configx "github.com/tanpawarit/Chative-Commerce-Tools/pkg/config"
)

var (
	dispatchArgs       string
	dispatchCallerText string
	dispatchCallerID   string
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <tool>",
	Short: "Run one tool call and print its envelope",
	Example: `  commerce-tools dispatch list-products
  commerce-tools dispatch get-order --args '{"userDetails":"+263999"}'
  commerce-tools dispatch delete-product --args '{"id":"..."}' --caller-text 'JESUS remove it'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := log.Logger.WithContext(cmd.Context())

		toolArgs := map[string]any{}
		if raw := strings.TrimSpace(dispatchArgs); raw != "" {
			if err := json.Unmarshal([]byte(raw), &toolArgs); err != nil {
				return fmt.Errorf("--args must be a JSON object: %w", err)
			}
		}

		app, err := configx.New[AppConfig]("APP")
		if err != nil {
			return err
		}
		c, err := buildCore(ctx, *app)
		if err != nil {
			return err
		}
		defer c.Close()

		env := c.dispatcher.Dispatch(ctx, args[0], toolArgs, contractx.CallerContext{
			Text:     dispatchCallerText,
			CallerID: dispatchCallerID,
		})

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	},
}

func init() {
	dispatchCmd.Flags().StringVar(&dispatchArgs, "args", "", "tool arguments as a JSON object")
	dispatchCmd.Flags().StringVar(&dispatchCallerText, "caller-text", "", "message text used for authorization")
	dispatchCmd.Flags().StringVar(&dispatchCallerID, "caller-id", "", "caller identity")
	rootCmd.AddCommand(dispatchCmd)
}
