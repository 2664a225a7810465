package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/trigg3rX/pumpkit-operator/pkg/env"
)

var ErrConfig = errors.New("invalid configuration")

const (
	LedgerMemory = "memory"
	LedgerRedis  = "redis"
)

type Config struct {
	devMode bool

	// Chain
	ethRPCURL string
	chainID   uint64

	// Key material
	privateKey       string
	keystorePath     string
	keystorePassword string

	// Contracts
	delegationManager common.Address
	avsDirectory      common.Address
	serviceManager    common.Address
	stakeRegistry     common.Address

	// Oracle
	oracleURL             string
	oracleEligibilityPath string
	oracleDetailsPath     string
	oracleTimeout         time.Duration

	// Submission
	confirmationDepth   uint64
	confirmationTimeout time.Duration
	submitMaxAttempts   int
	submitBackoffBase   time.Duration
	submitBackoffMax    time.Duration
	gasLimit            uint64

	// Registration
	registerOnStartup        bool
	registrationExpiryWindow time.Duration
	registrationMaxAttempts  int
	registrationVerifyDigest bool
	metadataURI              string

	// Watcher and dispatcher
	maxConcurrentTasks int
	pollInterval       time.Duration
	maxBlockRange      uint64
	startBlock         uint64
	shutdownTimeout    time.Duration
	taskTimeout        time.Duration

	// Ledger
	ledgerBackend string
	redisAddr     string
	redisPassword string
	ledgerTTL     time.Duration

	// API
	apiEnabled bool
	apiPort    string
}

var cfg Config

// Init loads .env when present, reads the environment and validates the
// result. Every failure matches ErrConfig.
func Init() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: error loading .env file: %v", ErrConfig, err)
	}

	c := Config{
		devMode: env.GetEnvBool("DEV_MODE", false),

		ethRPCURL: env.GetEnvFirst("", "ETH_RPC_URL", "RPC_URL"),
		chainID:   env.GetEnvUint64("CHAIN_ID", 0),

		privateKey:       env.GetEnvFirst("", "OPERATOR_PRIVATE_KEY", "PRIVATE_KEY"),
		keystorePath:     env.GetEnvString("OPERATOR_KEYSTORE_PATH", ""),
		keystorePassword: env.GetEnvString("OPERATOR_KEYSTORE_PASSWORD", ""),

		oracleURL:             strings.TrimRight(env.GetEnvFirst("http://localhost:3000", "ORACLE_URL", "AVS_SERVER_URL"), "/"),
		oracleEligibilityPath: env.GetEnvString("ORACLE_ELIGIBILITY_PATH", "/token-eligible"),
		oracleDetailsPath:     env.GetEnvString("ORACLE_DETAILS_PATH", "/token-details"),
		oracleTimeout:         env.GetEnvDuration("ORACLE_TIMEOUT", 10*time.Second),

		confirmationDepth:   env.GetEnvUint64("CONFIRMATION_DEPTH", 1),
		confirmationTimeout: env.GetEnvDuration("CONFIRMATION_TIMEOUT", 2*time.Minute),
		submitMaxAttempts:   env.GetEnvInt("SUBMIT_MAX_ATTEMPTS", 5),
		submitBackoffBase:   env.GetEnvDuration("SUBMIT_BACKOFF_BASE", time.Second),
		submitBackoffMax:    env.GetEnvDuration("SUBMIT_BACKOFF_MAX", 30*time.Second),
		gasLimit:            env.GetEnvUint64("GAS_LIMIT", 0),

		registerOnStartup:        env.GetEnvBool("REGISTER_ON_STARTUP", true),
		registrationExpiryWindow: env.GetEnvDuration("REGISTRATION_EXPIRY_WINDOW", time.Hour),
		registrationMaxAttempts:  env.GetEnvInt("REGISTRATION_MAX_ATTEMPTS", 3),
		registrationVerifyDigest: env.GetEnvBool("REGISTRATION_VERIFY_DIGEST", false),
		metadataURI:              env.GetEnvString("OPERATOR_METADATA_URI", ""),

		maxConcurrentTasks: env.GetEnvInt("MAX_CONCURRENT_TASKS", 8),
		pollInterval:       env.GetEnvDuration("POLL_INTERVAL", 5*time.Second),
		maxBlockRange:      env.GetEnvUint64("MAX_BLOCK_RANGE", 1000),
		startBlock:         env.GetEnvUint64("START_BLOCK", 0),
		shutdownTimeout:    env.GetEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		taskTimeout:        env.GetEnvDuration("TASK_TIMEOUT", 5*time.Minute),

		ledgerBackend: strings.ToLower(env.GetEnvString("LEDGER_BACKEND", LedgerMemory)),
		redisAddr:     env.GetEnvString("REDIS_ADDR", ""),
		redisPassword: env.GetEnvString("REDIS_PASSWORD", ""),
		ledgerTTL:     env.GetEnvDuration("LEDGER_TTL", 24*time.Hour),

		apiEnabled: env.GetEnvBool("API_ENABLED", true),
		apiPort:    env.GetEnvString("OPERATOR_API_PORT", "9011"),
	}

	if err := c.loadAddresses(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := c.resolveKeystorePassword(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if !c.devMode {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg = c
	return nil
}

// loadAddresses takes each contract address from its env var, falling back
// to the deployment files.
func (c *Config) loadAddresses() error {
	var core, avs deploymentAddresses
	if path := env.GetEnvString("CORE_DEPLOYMENT_PATH", ""); path != "" {
		d, err := readDeployment(path)
		if err != nil {
			return err
		}
		core = d
	}
	if path := env.GetEnvString("AVS_DEPLOYMENT_PATH", ""); path != "" {
		d, err := readDeployment(path)
		if err != nil {
			return err
		}
		avs = d
	}

	fields := []struct {
		key      string
		fallback string
		dst      *common.Address
	}{
		{"DELEGATION_MANAGER_ADDRESS", core.Delegation, &c.delegationManager},
		{"AVS_DIRECTORY_ADDRESS", core.AVSDirectory, &c.avsDirectory},
		{"SERVICE_MANAGER_ADDRESS", avs.ServiceManager, &c.serviceManager},
		{"STAKE_REGISTRY_ADDRESS", avs.StakeRegistry, &c.stakeRegistry},
	}
	for _, f := range fields {
		value := env.GetEnvFirst(f.fallback, f.key)
		if env.IsEmpty(value) {
			return fmt.Errorf("%s is required", f.key)
		}
		if !env.IsValidEthAddress(value) {
			return fmt.Errorf("invalid %s: %s", f.key, value)
		}
		*f.dst = common.HexToAddress(value)
	}
	return nil
}

func (c *Config) resolveKeystorePassword() error {
	if c.privateKey != "" || c.keystorePath == "" || c.keystorePassword != "" {
		return nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("OPERATOR_KEYSTORE_PASSWORD is required when stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Keystore password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read keystore password: %w", err)
	}
	c.keystorePassword = string(password)
	return nil
}

func (c *Config) validate() error {
	if !env.IsValidRPCURL(c.ethRPCURL) {
		return fmt.Errorf("invalid ETH_RPC_URL: %q", c.ethRPCURL)
	}
	switch {
	case c.privateKey != "":
		if !env.IsValidPrivateKey(c.privateKey) {
			return errors.New("invalid OPERATOR_PRIVATE_KEY")
		}
	case c.keystorePath == "":
		return errors.New("OPERATOR_PRIVATE_KEY or OPERATOR_KEYSTORE_PATH is required")
	}
	if !env.IsValidURL(c.oracleURL) {
		return fmt.Errorf("invalid ORACLE_URL: %q", c.oracleURL)
	}
	if c.oracleTimeout <= 0 {
		return errors.New("ORACLE_TIMEOUT must be positive")
	}
	if c.submitMaxAttempts < 1 {
		return errors.New("SUBMIT_MAX_ATTEMPTS must be at least 1")
	}
	if c.confirmationDepth < 1 {
		return errors.New("CONFIRMATION_DEPTH must be at least 1")
	}
	if c.registrationMaxAttempts < 1 {
		return errors.New("REGISTRATION_MAX_ATTEMPTS must be at least 1")
	}
	if c.maxConcurrentTasks < 1 {
		return errors.New("MAX_CONCURRENT_TASKS must be at least 1")
	}
	if c.maxBlockRange < 1 {
		return errors.New("MAX_BLOCK_RANGE must be at least 1")
	}
	switch c.ledgerBackend {
	case LedgerMemory:
	case LedgerRedis:
		if c.redisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis ledger")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.ledgerBackend)
	}
	if c.apiEnabled && !env.IsValidPort(c.apiPort) {
		return fmt.Errorf("invalid OPERATOR_API_PORT: %s", c.apiPort)
	}
	return nil
}

func IsDevMode() bool {
	return cfg.devMode
}

func GetEthRPCURL() string {
	return cfg.ethRPCURL
}

// GetChainID returns 0 when the chain id should be read from the node
func GetChainID() uint64 {
	return cfg.chainID
}

func GetOperatorPrivateKey() string {
	return cfg.privateKey
}

func GetKeystorePath() string {
	return cfg.keystorePath
}

func GetKeystorePassword() string {
	return cfg.keystorePassword
}

func GetDelegationManagerAddress() common.Address {
	return cfg.delegationManager
}

func GetAVSDirectoryAddress() common.Address {
	return cfg.avsDirectory
}

func GetServiceManagerAddress() common.Address {
	return cfg.serviceManager
}

func GetStakeRegistryAddress() common.Address {
	return cfg.stakeRegistry
}

func GetOracleURL() string {
	return cfg.oracleURL
}

func GetOracleEligibilityPath() string {
	return cfg.oracleEligibilityPath
}

func GetOracleDetailsPath() string {
	return cfg.oracleDetailsPath
}

func GetOracleTimeout() time.Duration {
	return cfg.oracleTimeout
}

func GetConfirmationDepth() uint64 {
	return cfg.confirmationDepth
}

func GetConfirmationTimeout() time.Duration {
	return cfg.confirmationTimeout
}

func GetSubmitMaxAttempts() int {
	return cfg.submitMaxAttempts
}

func GetSubmitBackoffBase() time.Duration {
	return cfg.submitBackoffBase
}

func GetSubmitBackoffMax() time.Duration {
	return cfg.submitBackoffMax
}

// GetGasLimit returns 0 when gas should be estimated
func GetGasLimit() uint64 {
	return cfg.gasLimit
}

func IsRegisterOnStartup() bool {
	return cfg.registerOnStartup
}

func GetRegistrationExpiryWindow() time.Duration {
	return cfg.registrationExpiryWindow
}

func GetRegistrationMaxAttempts() int {
	return cfg.registrationMaxAttempts
}

func IsRegistrationVerifyDigest() bool {
	return cfg.registrationVerifyDigest
}

func GetOperatorMetadataURI() string {
	return cfg.metadataURI
}

func GetMaxConcurrentTasks() int {
	return cfg.maxConcurrentTasks
}

func GetPollInterval() time.Duration {
	return cfg.pollInterval
}

func GetMaxBlockRange() uint64 {
	return cfg.maxBlockRange
}

func GetStartBlock() uint64 {
	return cfg.startBlock
}

func GetShutdownTimeout() time.Duration {
	return cfg.shutdownTimeout
}

func GetTaskTimeout() time.Duration {
	return cfg.taskTimeout
}

func GetLedgerBackend() string {
	return cfg.ledgerBackend
}

func GetRedisAddr() string {
	return cfg.redisAddr
}

func GetRedisPassword() string {
	return cfg.redisPassword
}

func GetLedgerTTL() time.Duration {
	return cfg.ledgerTTL
}

func IsAPIEnabled() bool {
	return cfg.apiEnabled
}

func GetOperatorAPIPort() string {
	return cfg.apiPort
}
