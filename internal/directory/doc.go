// Package directory resolves the miner and sharder endpoint sets, either from
// static configuration or from the network discovery endpoint of a domain.
package directory
