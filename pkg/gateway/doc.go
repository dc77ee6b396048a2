// Package gateway assembles the HTTP front door: the gin engine with
// request logging and recovery, the operator-facing login and dashboard
// pages, and the authenticated API controllers that fan requests out to the
// configured hosting accounts.
package gateway
