package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/walletkit/internal/config"
	"github.com/altuslabsxyz/walletkit/internal/output"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

const testAddress = "terra1qyqszqgpqyqszqgpqyqszqgpqyqszqgp5hm70u"

// execute runs the command tree against dataDir with the extension
// disabled so nothing probes the network.
func execute(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvExtensionEnabled, "false")

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--data-dir", dataDir, "--no-color"}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func statusOf(t *testing.T, dataDir string) output.StatusReport {
	t.Helper()
	out, err := execute(t, dataDir, "status", "--json")
	require.NoError(t, err)

	var report output.StatusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	return report
}

func TestStatus_NotConnected(t *testing.T) {
	report := statusOf(t, t.TempDir())

	assert.Equal(t, wallet.StatusWalletNotConnected, report.Status)
	assert.Equal(t, "columbus-5", report.Network.ChainID)
	assert.Empty(t, report.Wallets)
	assert.Equal(t, []wallet.ConnectType{wallet.ConnectTypeReadonly, wallet.ConnectTypeRelay}, report.Available)
}

func TestConnectReadonly_ResumesAndDisconnects(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "connect", "readonly", "--address", testAddress)
	require.NoError(t, err)
	assert.Contains(t, out, "connected to mainnet")
	assert.Contains(t, out, testAddress)

	report := statusOf(t, dir)
	assert.Equal(t, wallet.StatusWalletConnected, report.Status)
	require.Len(t, report.Wallets, 1)
	assert.Equal(t, wallet.ConnectTypeReadonly, report.Wallets[0].ConnectType)
	assert.Equal(t, testAddress, report.Wallets[0].Address)

	out, err = execute(t, dir, "disconnect")
	require.NoError(t, err)
	assert.Contains(t, out, "disconnected "+testAddress)

	assert.Equal(t, wallet.StatusWalletNotConnected, statusOf(t, dir).Status)
}

func TestConnect_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, dir, "connect", "readonly", "--address", "terra1nope")
	assert.Error(t, err)
	assert.True(t, wallet.IsConfiguration(err), "got %v", err)

	_, err = execute(t, dir, "connect", "extension")
	assert.ErrorContains(t, err, "EXTENSION is not available")

	_, err = execute(t, dir, "connect", "ledger")
	assert.ErrorContains(t, err, "unknown connect type")
}

func TestTx_RequiresContracts(t *testing.T) {
	_, err := execute(t, t.TempDir(), "tx", "sell", "10")
	assert.ErrorIs(t, err, errNoContracts)
}

func TestTx_ReadonlyCannotPost(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(`
[contracts]
anc_token = "terra1qurswpc8qurswpc8qurswpc8qurswpc84ha6zp"
bluna_token = "terra1pqyqszqgpqyqszqgpqyqszqgpqyqszqg600wxc"
custody = "terra1pyysjzgfpyysjzgfpyysjzgfpyysjzgfmlw0ve"
overseer = "terra1pg9q5zs2pg9q5zs2pg9q5zs2pg9q5zs22mg280"
market = "terra1pv9skzctpv9skzctpv9skzctpv9skzctttftdw"
oracle = "terra1psxqcrqvpsxqcrqvpsxqcrqvpsxqcrqvtmww2j"
gov = "terra1p5xs6rgdp5xs6rgdp5xs6rgdp5xs6rgd2t00qn"
staking = "terra1pc8qurswpc8qurswpc8qurswpc8qurswm0f2t9"
anc_ust_pair = "terra1pu8s7rc0pu8s7rc0pu8s7rc0pu8s7rc06lgtpy"
anc_ust_lp_token = "terra1zqgpqyqszqgpqyqszqgpqyqszqgpqyqsxfvr6w"
`), 0o600))

	_, err := execute(t, dir, "tx", "gov-stake", "5")
	assert.ErrorIs(t, err, errNotConnected)

	_, err = execute(t, dir, "connect", "readonly", "--address", testAddress)
	require.NoError(t, err)

	_, err = execute(t, dir, "tx", "gov-stake", "5")
	assert.ErrorIs(t, err, wallet.ErrNoPostableConnection)
}

func TestConfig_ShowAndInit(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "config", "show", "--log-level", "debug")
	require.NoError(t, err)
	assert.Regexp(t, `log_level = ['"]debug['"]`, out)
	assert.Contains(t, out, dir)

	out, err = execute(t, dir, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+filepath.Join(dir, config.ConfigFileName))

	_, err = execute(t, dir, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, dir, "config", "init", "--force")
	assert.NoError(t, err)

	cfg, err := config.NewLoader(dir, "").Load()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Server.DataDir)
}

func TestRoot_InvalidFlags(t *testing.T) {
	_, err := execute(t, t.TempDir(), "status", "--log-level", "loud")
	assert.ErrorContains(t, err, `invalid log_level "loud"`)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "walletkit version")
}
