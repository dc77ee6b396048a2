// Package cli defines the server-side CLI flag configuration and parsing
// for the renderfleet gateway binary. Every flag has a RENDERFLEET_*
// environment variable fallback; flags that default to the empty string
// defer to the YAML configuration file.
package cli
