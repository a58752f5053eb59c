// Package config loads the daemon configuration file and the optional
// seed manifest applied at startup. Backend drivers for the ledger,
// governance storage, metadata cache, and event queue are all selected
// here.
package config
