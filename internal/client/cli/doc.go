// Package cli provides the interactive ipdash command-line client.
//
// It wires configuration, the local credential database, the backend
// gateway, the services and the session store, then runs a REPL. Typical
// flow: resolve the stored session, start background revalidation, and
// execute user commands until exit.
//
// Key features:
//   - Register / Login / Logout, with guards that send anonymous users to the
//     login surface and signed-in users to the dashboard
//   - IP lookup (own address or any IP), saved to the search history
//   - Search history listing and deletion
//   - Login history
//   - whoami / me: local and server view of the identity
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
