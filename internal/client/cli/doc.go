// Package cli implements sealpay-cli, the buyer-side command-line client.
//
// Typical flow:
//
//	sealpay-cli upload song.mp3              # prints the content id
//	sealpay-cli pay <id>                     # prints the payment request
//	sealpay-cli status <id>
//	sealpay-cli key <id>                     # stores the released key locally
//	sealpay-cli download <id> -o song.sealed
//	sealpay-cli decrypt song.sealed song.mp3
//
// Released keys are kept in a local SQLite keyring so that decrypt can run
// offline once a key has been obtained.
package cli
