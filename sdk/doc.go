// Package sdk is the client for a blobber storage network. It reads chain
// state by asking every sharder and trusting only what enough of them agree
// on, and submits signed transactions to every miner while keeping the
// wallet nonce in step with the ledger.
//
//	c, err := sdk.New(cfg, sdk.WithWallet(w))
//	bal, err := c.GetBalance(ctx, "")
//	resp, err := c.SendTransaction(ctx, to, sdk.ZCNToSAS(1.5), "rent")
package sdk
