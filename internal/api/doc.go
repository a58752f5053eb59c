// Package api exposes the engine's external interfaces: previewing and
// executing commands, describing and verifying payloads, read-only balance
// and name queries, and the token-gated governance mutation surface.
package api
