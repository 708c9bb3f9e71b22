package cli

import (
	"encoding/base64"
	"time"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/cryptox"
	"github.com/dmitrijs2005/sealpay/internal/server/auth"
	"github.com/spf13/cobra"
)

func newKeygenCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a random base64 master key for the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := common.GenerateRandByteArray(cryptox.KeySize)
			defer common.WipeByteArray(b)

			app.printf("%s\n", base64.StdEncoding.EncodeToString(b))
			return nil
		},
	}
}

func newTokenCommand(app *App) *cobra.Command {
	var secret, subject string
	var validity time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an upload token signed with the server secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				suffix, err := common.MakeRandHexString(4)
				if err != nil {
					return err
				}
				subject = "uploader-" + suffix
			}
			tok, err := auth.GenerateToken(subject, []byte(secret), validity)
			if err != nil {
				return err
			}
			app.printf("%s\n", tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "server upload secret")
	cmd.Flags().StringVar(&subject, "subject", "", "uploader name (random when empty)")
	cmd.Flags().DurationVar(&validity, "validity", 24*time.Hour, "token validity")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}
