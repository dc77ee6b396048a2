// Package auth stores gateway session tokens between rfctl invocations,
// either in the OS keyring or a plain file cache, and prompts for operator
// credentials.
package auth
