// Package client is a typed HTTP client for the renderfleet gateway API,
// used by the rfctl command tree.
package client
