package transaction

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/uhyunpark/hyperspot/pkg/crypto"
)

// DefaultDomain separates devnet signatures from any other deployment.
const DefaultDomain = "hyperspot-devnet"

// Verifier checks transaction signatures for one signing domain.
type Verifier struct {
	domain string
}

func NewVerifier(domain string) *Verifier {
	if domain == "" {
		domain = DefaultDomain
	}
	return &Verifier{domain: domain}
}

// SigningHash is keccak256(domain || 0x00 || type || 0x00 || from || nonce || payload).
func (v *Verifier) SigningHash(tx *SignedTransaction) common.Hash {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], tx.Nonce)
	return ethCrypto.Keccak256Hash(
		[]byte(v.domain), []byte{0},
		[]byte(tx.Type), []byte{0},
		tx.Sender().Bytes(),
		nonce[:],
		tx.Payload,
	)
}

// Sign fills in From and Signature.
func (v *Verifier) Sign(tx *SignedTransaction, signer *crypto.Signer) error {
	tx.From = signer.Address().Hex()
	sig, err := signer.Sign(v.SigningHash(tx))
	if err != nil {
		return err
	}
	tx.Signature = hexutil.Encode(sig)
	return nil
}

// Verify returns the sender once the signature is shown to be theirs.
func (v *Verifier) Verify(tx *SignedTransaction) (common.Address, error) {
	sig, err := hexutil.Decode(tx.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", crypto.ErrInvalidSignature, err)
	}
	signer, err := crypto.RecoverAddress(v.SigningHash(tx), sig)
	if err != nil {
		return common.Address{}, err
	}
	if signer != tx.Sender() {
		return common.Address{}, fmt.Errorf("%w: signed by %s, sent as %s", crypto.ErrInvalidSignature, signer.Hex(), tx.From)
	}
	return signer, nil
}
