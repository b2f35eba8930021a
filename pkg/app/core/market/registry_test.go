package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hyperspot/pkg/storage"
)

func TestRegistry_AddIsIdempotent(t *testing.T) {
	r := NewRegistry(storage.NewMemStore())
	btc := NewPair("BTC", "PCX")

	added, err := r.Add(btc, 1)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = r.Add(btc, 4)
	require.NoError(t, err)
	assert.False(t, added)

	d, err := r.Detail(btc)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), d.Precision)

	list, err := r.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRegistry_UnknownAndInvalid(t *testing.T) {
	r := NewRegistry(storage.NewMemStore())

	_, err := r.Detail(NewPair("ETH", "PCX"))
	require.ErrorIs(t, err, ErrUnknownPair)

	ok, err := r.Contains(NewPair("ETH", "PCX"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.Add(NewPair("PCX", "PCX"), 2)
	require.Error(t, err)
}

func TestParsePair(t *testing.T) {
	tests := []struct {
		in      string
		want    Pair
		wantErr bool
	}{
		{in: "BTC/PCX", want: NewPair("BTC", "PCX")},
		{in: "PCX-SDOT", want: NewPair("PCX", "SDOT")},
		{in: "BTC", wantErr: true},
		{in: "/PCX", wantErr: true},
		{in: "A/B/C", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePair(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}
