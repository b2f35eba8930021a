package params

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("NODE_DATA_DIR", "/tmp/spot")
	t.Setenv("NODE_MIN_BLOCK_TIME_MS", "50")
	t.Setenv("NODE_LOG_LEVEL", "debug")
	t.Setenv("NODE_MAX_BLOCK_BYTES", "bogus")
	t.Setenv("API_ALLOWED_ORIGINS", "http://a, http://b,")

	cfg := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.Equal(t, "/tmp/spot", cfg.Node.DataDir)
	assert.Equal(t, 50*time.Millisecond, cfg.Node.MinBlockTime)
	assert.Equal(t, "debug", cfg.Node.LogLevel)
	assert.Equal(t, Default().Node.MaxBlockBytes, cfg.Node.MaxBlockBytes)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.API.AllowedOrigins)
	assert.Equal(t, ":8080", cfg.API.Addr)
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("API_ADDR=:9090\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("API_ADDR") })

	cfg := LoadFromEnv(path)
	assert.Equal(t, ":9090", cfg.API.Addr)
}

func TestDefaultGenesisIsValid(t *testing.T) {
	require.NoError(t, DefaultGenesis().Validate())
	g, err := LoadGenesis("")
	require.NoError(t, err)
	assert.Equal(t, "PCX", g.NativeToken)
}

func TestLoadGenesisYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	body := `
native_token: PCX
assets:
  - token: PCX
    precision: 8
  - token: BTC
    precision: 1
pairs:
  - first: BTC
    second: PCX
    precision: 2
order_fee: 25
average_price_window: 10
channels:
  - name: alpha
    account: "0x3333333333333333333333333333333333333333"
balances:
  - account: "0x1111111111111111111111111111111111111111"
    token: PCX
    amount: 1000
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	g, err := LoadGenesis(path)
	require.NoError(t, err)
	assert.Len(t, g.Assets, 2)
	assert.Equal(t, GenesisPair{First: "BTC", Second: "PCX", Precision: 2}, g.Pairs[0])
	assert.Equal(t, uint64(25), g.OrderFee)
	assert.Equal(t, uint64(10), g.AveragePriceWindow)
	assert.Equal(t, "alpha", g.Channels[0].Name)
	assert.Equal(t, uint64(1000), g.Balances[0].Amount)
	// Not in the file: kept from the defaults.
	assert.Equal(t, DefaultGenesis().Admin, g.Admin)
}

func TestGenesisValidate(t *testing.T) {
	g := DefaultGenesis()
	g.NativeToken = "ETH"
	g.Pairs = append(g.Pairs, GenesisPair{First: "DOGE", Second: "USDT"})
	g.Admin = "admin"
	g.SystemAccount = "0x00000000000000000000000000000000000000aa"
	g.BurnAccount = g.SystemAccount

	err := g.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "native token")
	assert.Contains(t, err.Error(), "DOGE/USDT")
	assert.Contains(t, err.Error(), "admin account")
	assert.Contains(t, err.Error(), "must differ")

	_, err = LoadGenesis(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
