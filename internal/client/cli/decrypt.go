package cli

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/sealpay/internal/client/repositories/keys"
	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/cryptox"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
)

func newDecryptCommand(app *App) *cobra.Command {
	var id, keyB64, nonceB64 string

	cmd := &cobra.Command{
		Use:   "decrypt <sealed> <out>",
		Short: "Decrypt a downloaded blob offline",
		Long: `Decrypts a sealed blob (ciphertext followed by a 16-byte tag).
The key comes from --key and --nonce, or from the keyring entry for --id.
Without either, the id is taken from the blob's own digest.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sealed, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var key, nonce []byte
			switch {
			case keyB64 != "" || nonceB64 != "":
				if key, err = base64.StdEncoding.DecodeString(keyB64); err != nil {
					return fmt.Errorf("%w: --key is not base64", common.ErrorInput)
				}
				if nonce, err = base64.StdEncoding.DecodeString(nonceB64); err != nil {
					return fmt.Errorf("%w: --nonce is not base64", common.ErrorInput)
				}
			default:
				if id == "" {
					id = digest.FromBytes(sealed).Encoded()
				}
				err = app.withKeyring(cmd.Context(), func(r keys.Repository) error {
					k, err := r.Get(cmd.Context(), id)
					if err != nil {
						return fmt.Errorf("no key for %s in keyring: %w", id, err)
					}
					key, nonce = k.ContentKey, k.Nonce
					return nil
				})
				if err != nil {
					return err
				}
			}
			defer common.WipeByteArray(key)

			plaintext, err := cryptox.Open(key, nonce, sealed, nil)
			if err != nil {
				return fmt.Errorf("decrypt %s: %w", args[0], err)
			}

			err = writeFileAtomic(args[1], func(w io.Writer) error {
				_, err := io.Copy(w, bytes.NewReader(plaintext))
				return err
			})
			if err != nil {
				return err
			}

			app.printf("decrypted %d bytes to %s\n", len(plaintext), args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "content id to look up in the keyring")
	cmd.Flags().StringVar(&keyB64, "key", "", "base64 content key")
	cmd.Flags().StringVar(&nonceB64, "nonce", "", "base64 nonce")
	cmd.MarkFlagsRequiredTogether("key", "nonce")
	cmd.MarkFlagsMutuallyExclusive("id", "key")
	return cmd
}
