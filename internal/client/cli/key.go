package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/sealpay/internal/client/repositories/keys"
	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/spf13/cobra"
)

func newKeyCommand(app *App) *cobra.Command {
	var show bool

	cmd := &cobra.Command{
		Use:   "key <id>",
		Short: "Fetch the content key once paid and store it in the keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			k, err := app.api().Key(cmd.Context(), id, app.config.Payer)
			var pr *common.PaymentRequiredError
			if errors.As(err, &pr) {
				status := pr.IntentStatus
				if status == "" {
					status = "none"
				}
				return fmt.Errorf("%w (intent: %s); run 'pay %s' first", common.ErrorPaymentRequired, status, id)
			}
			if err != nil {
				return err
			}
			defer common.WipeByteArray(k.ContentKey)

			err = app.withKeyring(cmd.Context(), func(r keys.Repository) error {
				return r.Put(cmd.Context(), &keys.ReleasedKey{
					ContentID:  k.ID,
					Algorithm:  k.Algorithm,
					ContentKey: k.ContentKey,
					Nonce:      k.Nonce,
				})
			})
			if err != nil {
				return err
			}

			app.printf("key for %s saved to %s\n", k.ID, app.config.KeyringPath)
			if show {
				app.printf("key: %s\nnonce: %s\n",
					base64.StdEncoding.EncodeToString(k.ContentKey),
					base64.StdEncoding.EncodeToString(k.Nonce))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "also print the key and nonce in base64")
	return cmd
}

func newDownloadCommand(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download and verify a sealed blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if output == "" {
				output = id + ".sealed"
			}

			err := writeFileAtomic(output, func(w io.Writer) error {
				return app.api().Download(cmd.Context(), id, w)
			})
			if err != nil {
				return err
			}

			app.printf("saved %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <id>.sealed)")
	return cmd
}
