package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hyperspot/pkg/crypto"
)

func signedPlace(t *testing.T, v *Verifier, signer *crypto.Signer) *SignedTransaction {
	t.Helper()
	tx, err := NewTransaction(TxPlace, signer.Address(), 1, PlacePayload{Pair: "BTC/PCX", Side: "buy", Amount: 100, Price: 20})
	require.NoError(t, err)
	require.NoError(t, v.Sign(tx, signer))
	return tx
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	v := NewVerifier("")
	tx := signedPlace(t, v, signer)

	raw, err := tx.Serialize()
	require.NoError(t, err)
	parsed, err := ParseTransaction(raw)
	require.NoError(t, err)

	from, err := v.Verify(parsed)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from)

	var p PlacePayload
	require.NoError(t, parsed.DecodePayload(&p))
	assert.Equal(t, uint64(100), p.Amount)
}

func TestVerifyRejectsTampering(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	v := NewVerifier("")

	tx := signedPlace(t, v, signer)
	tx.Nonce = 2
	_, err = v.Verify(tx)
	assert.ErrorIs(t, err, crypto.ErrInvalidSignature)

	tx = signedPlace(t, v, signer)
	tx.From = other.Address().Hex()
	_, err = v.Verify(tx)
	assert.ErrorIs(t, err, crypto.ErrInvalidSignature)

	tx = signedPlace(t, v, signer)
	_, err = NewVerifier("mainnet").Verify(tx)
	assert.ErrorIs(t, err, crypto.ErrInvalidSignature)

	tx = signedPlace(t, v, signer)
	tx.Signature = "0xzz"
	_, err = v.Verify(tx)
	assert.ErrorIs(t, err, crypto.ErrInvalidSignature)
}

func TestParseTransactionValidation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `O:GTC:BTC`},
		{"missing type", `{"from":"0x1111111111111111111111111111111111111111","payload":{},"signature":"0x01"}`},
		{"unknown type", `{"type":"order","from":"0x1111111111111111111111111111111111111111","payload":{},"signature":"0x01"}`},
		{"bad sender", `{"type":"place","from":"alice","payload":{},"signature":"0x01"}`},
		{"no payload", `{"type":"place","from":"0x1111111111111111111111111111111111111111","signature":"0x01"}`},
		{"no signature", `{"type":"place","from":"0x1111111111111111111111111111111111111111","payload":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTransaction([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}
