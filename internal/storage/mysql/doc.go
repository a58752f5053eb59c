// Package mysql provides repositories and data access helpers backed by MySQL.
// It encapsulates schema migrations and the strongly typed queries that persist
// the governance alias and pool route tables across restarts.
package mysql
