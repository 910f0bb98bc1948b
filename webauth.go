// Package webauth contains the version number of webauth and the defaults
// shared by the server, the client SDK and the command line tool.
package webauth

import "time"

// Version is the current version of webauth.
//
// This variable is set at build time using the -X linker flag. If not set,
// it defaults to "devel".
var Version = "devel"

// DefaultChallengeTimeout is how long a freshly built challenge transaction
// stays valid for.
const DefaultChallengeTimeout = 300 * time.Second

// DefaultTokenExpiration is how long an issued session token is valid for.
const DefaultTokenExpiration = 24 * time.Hour

// AuthPath is the path of the SEP-10 endpoint relative to the server's base
// prefix.
const AuthPath = "/auth"

// HealthPath is the liveness endpoint.
const HealthPath = "/.well-known/healthz"

// NonceStorePrefix namespaces spent challenge nonces in the store.
const NonceStorePrefix = "webauth:nonce:"

// AccountStorePrefix namespaces cached account signer summaries in the store.
const AccountStorePrefix = "webauth:account:"
