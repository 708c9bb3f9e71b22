package cli

import (
	"context"

	"github.com/dmitrijs2005/sealpay/internal/client/config"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree around app. Global flags are bound
// to app's config.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "sealpay-cli",
		Short:         "Buy and decrypt sealed content",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	app.config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newUploadCommand(app),
		newPayCommand(app),
		newStatusCommand(app),
		newKeyCommand(app),
		newDownloadCommand(app),
		newDecryptCommand(app),
		newKeygenCommand(app),
		newTokenCommand(app),
	)
	return root
}

// Execute loads configuration and runs the command line in args.
func Execute(ctx context.Context, args []string) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}

	root := NewRootCommand(NewApp(cfg))
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
