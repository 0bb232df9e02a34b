// Package cli provides the interactive CareVault command-line client.
//
// It wires configuration, the local sqlite cache, API services, and an
// interactive REPL. Typical flow: resume a persisted convenience session if
// one exists, otherwise prompt for credentials and a security tier, then
// execute user commands.
//
// Key features:
//   - Register / Login at a chosen tier (high, balanced, convenience)
//   - Offline login against cached credentials when the server is down
//   - Submit / show / list / delete weekly priority records
//   - Password change with DEK rewrap
//   - Admin recovery: batch-decrypt every user's records with the recovery
//     key file (plain or passphrase-protected)
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
