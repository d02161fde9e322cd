package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"handbook-chat/internal/client"
)

const defaultServer = "http://localhost:3001"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "handbook",
	Short: "Talk to the crypto handbook chat proxy",
	Long: `handbook sends questions to a running chat proxy and streams the
answers to the terminal. It can also activate and check subscriptions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command until it finishes or the process is
// interrupted. Called once from main.main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	server := os.Getenv("HANDBOOK_SERVER")
	if server == "" {
		server = defaultServer
	}
	rootCmd.PersistentFlags().StringP("server", "s", server, "chat proxy base URL (env HANDBOOK_SERVER)")
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	server, err := cmd.Flags().GetString("server")
	if err != nil {
		return nil, err
	}
	return client.New(server)
}
