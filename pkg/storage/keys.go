package storage

import "fmt"

// Key layout shared by the ledger modules. Every module owns one prefix:
//
//	bal:<address>:<token>            → asset balance
//	pair:list                        → registered trading pairs
//	chan:<name>                      → channel account
//	ord:<address>:<pair>:<seq>       → order
//	ordseq:<address>:<pair>          → last order sequence
//	fill:<pair>:<index>              → fill record
//	fillidx:<pair>                   → last fill index
//	cmd:<id> / cmd:max               → command outbox
//	fbt:<id> / fbt:max               → fee-buy tickets
//	px:last|avg:<pair>, px:native:<token>
//	cfg:engine                       → engine config
//	nonce:<address>                  → last accepted tx nonce
//	blk:<height> / blk:last          → produced block headers
//
// Sequences are zero-padded to 20 digits so prefix scans return them in order.

// Key joins a prefix and parts with ':'.
func Key(prefix string, parts ...string) []byte {
	b := []byte(prefix)
	for i, p := range parts {
		if i > 0 {
			b = append(b, ':')
		}
		b = append(b, p...)
	}
	return b
}

// Seq renders a sequence number for use inside a key.
func Seq(n uint64) string {
	return fmt.Sprintf("%020d", n)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
// Example: prefix "ord:0x12:" -> "ord:0x12;"
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] < 0xff {
			bound[i]++
			return bound[:i+1]
		}
	}
	return nil // prefix is all 0xff; no upper bound
}
