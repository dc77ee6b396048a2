// Package apiresponses provides standardized HTTP API response helpers
// (error, not-found, unauthorized, etc.) shared between the gateway
// controllers without import cycles.
package apiresponses
