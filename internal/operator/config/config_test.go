package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey           = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	delegationManager = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	avsDirectory      = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	serviceManager    = "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"
	stakeRegistry     = "0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ETH_RPC_URL", "ws://localhost:8545")
	t.Setenv("OPERATOR_PRIVATE_KEY", testKey)
	t.Setenv("DELEGATION_MANAGER_ADDRESS", delegationManager)
	t.Setenv("AVS_DIRECTORY_ADDRESS", avsDirectory)
	t.Setenv("SERVICE_MANAGER_ADDRESS", serviceManager)
	t.Setenv("STAKE_REGISTRY_ADDRESS", stakeRegistry)
}

func TestInit_ValidEnv_AppliesDefaults(t *testing.T) {
	setValidEnv(t)

	require.NoError(t, Init())

	assert.Equal(t, "ws://localhost:8545", GetEthRPCURL())
	assert.Equal(t, uint64(0), GetChainID())
	assert.Equal(t, common.HexToAddress(serviceManager), GetServiceManagerAddress())
	assert.Equal(t, common.HexToAddress(stakeRegistry), GetStakeRegistryAddress())
	assert.Equal(t, "http://localhost:3000", GetOracleURL())
	assert.Equal(t, "/token-eligible", GetOracleEligibilityPath())
	assert.Equal(t, "/token-details", GetOracleDetailsPath())
	assert.Equal(t, 10*time.Second, GetOracleTimeout())
	assert.Equal(t, uint64(1), GetConfirmationDepth())
	assert.Equal(t, 2*time.Minute, GetConfirmationTimeout())
	assert.Equal(t, 5, GetSubmitMaxAttempts())
	assert.Equal(t, time.Second, GetSubmitBackoffBase())
	assert.True(t, IsRegisterOnStartup())
	assert.Equal(t, time.Hour, GetRegistrationExpiryWindow())
	assert.Equal(t, 3, GetRegistrationMaxAttempts())
	assert.False(t, IsRegistrationVerifyDigest())
	assert.Equal(t, 8, GetMaxConcurrentTasks())
	assert.Equal(t, uint64(1000), GetMaxBlockRange())
	assert.Equal(t, 30*time.Second, GetShutdownTimeout())
	assert.Equal(t, LedgerMemory, GetLedgerBackend())
	assert.Equal(t, "9011", GetOperatorAPIPort())
}

func TestInit_Aliases_Used(t *testing.T) {
	setValidEnv(t)
	t.Setenv("ETH_RPC_URL", "")
	t.Setenv("RPC_URL", "http://localhost:8545")
	t.Setenv("OPERATOR_PRIVATE_KEY", "")
	t.Setenv("PRIVATE_KEY", testKey)
	t.Setenv("AVS_SERVER_URL", "http://oracle:3000/")

	require.NoError(t, Init())

	assert.Equal(t, "http://localhost:8545", GetEthRPCURL())
	assert.Equal(t, testKey, GetOperatorPrivateKey())
	assert.Equal(t, "http://oracle:3000", GetOracleURL())
}

func TestInit_MissingRPC_ErrConfig(t *testing.T) {
	setValidEnv(t)
	t.Setenv("ETH_RPC_URL", "")

	assert.ErrorIs(t, Init(), ErrConfig)
}

func TestInit_InvalidAddress_ErrConfig(t *testing.T) {
	setValidEnv(t)
	t.Setenv("SERVICE_MANAGER_ADDRESS", "0x1234")

	assert.ErrorIs(t, Init(), ErrConfig)
}

func TestInit_NoKeyMaterial_ErrConfig(t *testing.T) {
	setValidEnv(t)
	t.Setenv("OPERATOR_PRIVATE_KEY", "")

	assert.ErrorIs(t, Init(), ErrConfig)
}

func TestInit_RedisLedgerWithoutAddr_ErrConfig(t *testing.T) {
	setValidEnv(t)
	t.Setenv("LEDGER_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "")

	assert.ErrorIs(t, Init(), ErrConfig)
}

func TestInit_ZeroConcurrency_ErrConfig(t *testing.T) {
	setValidEnv(t)
	t.Setenv("MAX_CONCURRENT_TASKS", "0")

	assert.ErrorIs(t, Init(), ErrConfig)
}

func TestInit_DeploymentFiles_FillAddresses(t *testing.T) {
	setValidEnv(t)
	for _, key := range []string{"DELEGATION_MANAGER_ADDRESS", "AVS_DIRECTORY_ADDRESS", "SERVICE_MANAGER_ADDRESS", "STAKE_REGISTRY_ADDRESS"} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	corePath := filepath.Join(dir, "core.json")
	avsPath := filepath.Join(dir, "avs.json")
	require.NoError(t, os.WriteFile(corePath, []byte(`{"addresses":{"delegation":"`+delegationManager+`","avsDirectory":"`+avsDirectory+`"}}`), 0o600))
	require.NoError(t, os.WriteFile(avsPath, []byte(`{"addresses":{"pumpkitServiceManager":"`+serviceManager+`","stakeRegistry":"`+stakeRegistry+`"}}`), 0o600))
	t.Setenv("CORE_DEPLOYMENT_PATH", corePath)
	t.Setenv("AVS_DEPLOYMENT_PATH", avsPath)

	require.NoError(t, Init())

	assert.Equal(t, common.HexToAddress(delegationManager), GetDelegationManagerAddress())
	assert.Equal(t, common.HexToAddress(avsDirectory), GetAVSDirectoryAddress())
	assert.Equal(t, common.HexToAddress(serviceManager), GetServiceManagerAddress())
	assert.Equal(t, common.HexToAddress(stakeRegistry), GetStakeRegistryAddress())
}

func TestInit_MissingDeploymentFile_ErrConfig(t *testing.T) {
	setValidEnv(t)
	t.Setenv("CORE_DEPLOYMENT_PATH", filepath.Join(t.TempDir(), "missing.json"))

	assert.ErrorIs(t, Init(), ErrConfig)
}
