// Package render implements the HTTP client for the upstream Render hosting
// API, with methods for service listing, deploy triggering, event listing,
// and environment-variable CRUD. Every call is made on behalf of one
// configured account and carries that account's API key.
package render
