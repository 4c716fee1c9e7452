// Package wallet implements the mobile-wallet domain on top of the request/reply bridge:
// the transfer saga that settles a wallet-to-wallet payment against a remote ledger,
// and the wallet user service that associates debit cards through a remote validator.
//
// Storage and caching are ports (UserStore, TransferStore, Cache); the remote
// capabilities are reached through a bridge.Caller.
package wallet
