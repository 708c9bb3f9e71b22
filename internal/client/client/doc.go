// Package client contains the buyer-side building blocks for SealPay.
//
// # Overview
//
// The package provides:
//  1. The Client interface covering upload, download, payment, status and
//     key release against a SealPay server.
//  2. HTTPClient, an implementation over go-retryablehttp that retries
//     transient failures and maps HTTP status codes to the sentinel errors
//     in the common package.
//  3. InitDatabase and RunMigrations, which open the local SQLite keyring
//     and apply its embedded goose migrations.
//
// # Error Handling
//
// A 402 answer surfaces as *common.PaymentRequiredError carrying the intent
// status. Other failures wrap common.ErrorInput, common.ErrorUnauthorized,
// common.ErrorNotFound, common.ErrorExternalBackend or ErrUnavailable, so
// callers can match them with errors.Is.
package client
