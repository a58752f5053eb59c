// Package redis caches token metadata looked up from the ledger so that
// repeated alias registrations and decode calls avoid redundant contract
// reads. An in-process fallback is provided for deployments without a
// Redis endpoint.
package redis
