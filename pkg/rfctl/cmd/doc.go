// Package cmd implements the cobra command tree for the rfctl CLI, including
// subcommands for authentication, service listing, deploys, environment
// variables, events, configuration, and shell completion.
package cmd
