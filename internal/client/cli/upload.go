package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newUploadCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Seal a file on the server and print its content id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := app.api().Upload(cmd.Context(), f)
			if err != nil {
				return fmt.Errorf("upload %s: %w", args[0], err)
			}

			app.printf("id: %s\nalgorithm: %s\nsize: %d\n", res.ID, res.Algorithm, res.Size)
			return nil
		},
	}
}
