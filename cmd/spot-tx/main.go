// Command spot-tx builds and signs a transaction for the node's POST
// /api/v1/tx endpoint and prints it as JSON.
//
//	spot-tx --key <hex> --type place --nonce 1 \
//	    --payload '{"pair":"PCX/BTC","side":"buy","amount":100000000,"price":5}'
//
// Without --key a fresh keypair is generated and printed to stderr.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/uhyunpark/hyperspot/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperspot/pkg/crypto"
)

func main() {
	var (
		key     = pflag.String("key", "", "hex private key of the sender")
		typ     = pflag.String("type", string(transaction.TxPlace), "transaction type")
		nonce   = pflag.Uint64("nonce", 1, "sender nonce, larger than the last accepted one")
		payload = pflag.String("payload", "{}", "JSON payload")
		domain  = pflag.String("domain", transaction.DefaultDomain, "chain domain mixed into the signature")
		pretty  = pflag.Bool("pretty", false, "indent the output")
	)
	pflag.Parse()

	if err := run(*key, transaction.TxType(*typ), *nonce, *payload, *domain, *pretty); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(key string, typ transaction.TxType, nonce uint64, payload, domain string, pretty bool) error {
	var (
		signer *crypto.Signer
		err    error
	)
	if key == "" {
		signer, err = crypto.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Address: %s\nPrivate Key: %s (KEEP SECRET!)\n", signer.Address().Hex(), signer.PrivateKeyHex())
	} else {
		signer, err = crypto.FromPrivateKeyHex(key)
		if err != nil {
			return err
		}
	}

	if !json.Valid([]byte(payload)) {
		return fmt.Errorf("payload is not valid JSON")
	}
	tx, err := transaction.NewTransaction(typ, signer.Address(), nonce, json.RawMessage(payload))
	if err != nil {
		return err
	}
	verifier := transaction.NewVerifier(domain)
	if err := verifier.Sign(tx, signer); err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	if err := tx.Validate(); err != nil {
		return err
	}
	// Round trip through the verifier the node uses.
	if _, err := verifier.Verify(tx); err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	var out []byte
	if pretty {
		out, err = json.MarshalIndent(tx, "", "  ")
	} else {
		out, err = tx.Serialize()
	}
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
