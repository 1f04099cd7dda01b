// X1-StakePool: custodial staking daemon.
//
// The daemon hosts the instruction engine with the token and stake pool
// programs registered, persists accounts in BadgerDB, and exposes the
// HTTP relay that front-ends use to stake and unstake.
package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fortiblox/x1-stakepool/pkg/accounts"
	"github.com/fortiblox/x1-stakepool/pkg/metrics"
	"github.com/fortiblox/x1-stakepool/pkg/programs/stakepool"
	"github.com/fortiblox/x1-stakepool/pkg/programs/token"
	"github.com/fortiblox/x1-stakepool/pkg/rpc"
	"github.com/fortiblox/x1-stakepool/pkg/runtime"
	"github.com/fortiblox/x1-stakepool/pkg/snapshot"
	"github.com/fortiblox/x1-stakepool/pkg/types"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "dev"
	BuildTime = "unknown"
)

// Configuration flags
var (
	configFile       = flag.String("config", "/root/.config/x1-stakepool/config.json", "Path to JSON configuration file")
	dataDir          = flag.String("data-dir", "", "Data directory for the accounts database (\":memory:\" for in-memory)")
	relayAddr        = flag.String("relay-addr", "", "Relay server listen address")
	adminKey         = flag.String("admin", "", "Pool admin public key (base58)")
	bootstrap        = flag.Bool("bootstrap", false, "Create mints, vaults, and the pool on startup (devnet)")
	bootstrapUsers   = flag.Int("bootstrap-users", 0, "Number of funded demo users to create during bootstrap")
	enableMetrics    = flag.Bool("enable-metrics", false, "Enable Prometheus metrics server")
	metricsAddr      = flag.String("metrics-addr", "", "Metrics server listen address")
	snapshotPath     = flag.String("snapshot-path", "", "Path for periodic account snapshots")
	snapshotInterval = flag.Duration("snapshot-interval", 0, "Interval between snapshots (0 disables)")
	restoreSnapshot  = flag.String("restore-snapshot", "", "Restore accounts from this snapshot before starting")
	slotInterval     = flag.Duration("slot-interval", 0, "Interval between slot advances")
	showVersion      = flag.Bool("version", false, "Print version and exit")
)

// Config represents the JSON configuration file structure.
type Config struct {
	Relay    RelayConfig    `json:"relay"`
	Pool     PoolConfig     `json:"pool"`
	Metrics  MetricsConfig  `json:"metrics"`
	Snapshot SnapshotConfig `json:"snapshot"`
	General  GeneralConfig  `json:"general"`
}

// RelayConfig holds relay server settings.
type RelayConfig struct {
	Addr            string  `json:"addr"`
	EnableRateLimit bool    `json:"enable_rate_limit"`
	RateLimitRPS    float64 `json:"rate_limit_rps"`
	RateLimitBurst  float64 `json:"rate_limit_burst"`
}

// PoolConfig holds pool identity settings.
type PoolConfig struct {
	Admin string `json:"admin"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// SnapshotConfig holds snapshot settings.
type SnapshotConfig struct {
	Path       string `json:"path"`
	IntervalMs int    `json:"interval_ms"`
	Restore    string `json:"restore"`
}

// GeneralConfig holds general application settings.
type GeneralConfig struct {
	DataDir        string `json:"data_dir"`
	SlotIntervalMs int    `json:"slot_interval_ms"`
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Relay: RelayConfig{
			Addr:            ":8899",
			EnableRateLimit: false,
			RateLimitRPS:    100,
			RateLimitBurst:  200,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		General: GeneralConfig{
			DataDir:        "/var/lib/x1-stakepool",
			SlotIntervalMs: 400,
		},
	}
}

// loadConfig loads configuration from the specified JSON file.
// If the file doesn't exist, it returns the default configuration.
func loadConfig(configPath string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults", configPath)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	log.Printf("Loaded configuration from %s", configPath)
	return cfg, nil
}

// applyConfigWithCLIOverrides applies config values, letting any flag
// set on the command line win.
func applyConfigWithCLIOverrides(cfg Config) {
	flagSet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		flagSet[f.Name] = true
	})

	if !flagSet["relay-addr"] {
		*relayAddr = cfg.Relay.Addr
	}
	if !flagSet["admin"] {
		*adminKey = cfg.Pool.Admin
	}
	if !flagSet["enable-metrics"] {
		*enableMetrics = cfg.Metrics.Enabled
	}
	if !flagSet["metrics-addr"] {
		*metricsAddr = cfg.Metrics.Addr
	}
	if !flagSet["data-dir"] {
		*dataDir = cfg.General.DataDir
	}
	if !flagSet["snapshot-path"] {
		*snapshotPath = cfg.Snapshot.Path
	}
	if !flagSet["snapshot-interval"] {
		*snapshotInterval = time.Duration(cfg.Snapshot.IntervalMs) * time.Millisecond
	}
	if !flagSet["restore-snapshot"] {
		*restoreSnapshot = cfg.Snapshot.Restore
	}
	if !flagSet["slot-interval"] {
		*slotInterval = time.Duration(cfg.General.SlotIntervalMs) * time.Millisecond
	}
}

// randomPubkey generates a fresh pubkey for bootstrap accounts.
func randomPubkey() types.Pubkey {
	var pk types.Pubkey
	if _, err := rand.Read(pk[:]); err != nil {
		log.Fatalf("Failed to generate pubkey: %v", err)
	}
	return pk
}

// process executes an instruction and fails hard on any error. Bootstrap
// runs before the relay accepts traffic, so every step must succeed.
func process(engine *runtime.Engine, inst *types.Instruction, what string) {
	result, err := engine.Process(inst)
	if err != nil {
		log.Fatalf("Bootstrap %s: %v", what, err)
	}
	if result.Err != nil {
		log.Fatalf("Bootstrap %s: %v", what, result.Err)
	}
}

// bootstrapPool creates the mints, vaults, pool, and optional funded demo
// users. Returns the admin pubkey the pool is bound to.
func bootstrapPool(engine *runtime.Engine, admin types.Pubkey, users int) types.Pubkey {
	if admin.IsZero() {
		admin = randomPubkey()
		log.Printf("Generated bootstrap admin %s", admin)
	}

	poolAddress, bump, err := stakepool.DerivePoolAddress(admin)
	if err != nil {
		log.Fatalf("Bootstrap derive pool address: %v", err)
	}

	if acc, err := engine.DB().GetAccount(poolAddress); err != nil {
		log.Fatalf("Bootstrap pool lookup: %v", err)
	} else if acc != nil {
		log.Printf("Pool %s already initialized, skipping bootstrap", poolAddress)
		return admin
	}

	stakingMint := randomPubkey()
	rewardMint := randomPubkey()
	stakingVault := randomPubkey()
	rewardVault := randomPubkey()

	for _, mint := range []types.Pubkey{stakingMint, rewardMint} {
		process(engine, types.NewInstruction(
			types.TokenProgramID,
			(&token.InitializeMintInstruction{Decimals: 9, MintAuthority: admin}).Encode(),
			types.WritableMeta(mint, false),
		), "initialize mint")
	}

	vaults := []struct{ vault, mint types.Pubkey }{
		{stakingVault, stakingMint},
		{rewardVault, rewardMint},
	}
	for _, v := range vaults {
		process(engine, types.NewInstruction(
			types.TokenProgramID,
			(&token.InitializeAccountInstruction{}).Encode(),
			types.WritableMeta(v.vault, false),
			types.Meta(v.mint),
			types.Meta(admin),
		), "initialize vault")
	}

	process(engine, types.NewInstruction(
		types.StakePoolProgramID,
		(&stakepool.InitializePoolInstruction{}).Encode(),
		types.WritableMeta(poolAddress, false),
		types.Meta(stakingMint),
		types.WritableMeta(stakingVault, false),
		types.Meta(rewardMint),
		types.WritableMeta(rewardVault, false),
		types.SignerMeta(admin),
	), "initialize pool")

	log.Printf("Initialized pool %s (bump %d)", poolAddress, bump)
	log.Printf("  staking mint  %s", stakingMint)
	log.Printf("  staking vault %s", stakingVault)
	log.Printf("  reward mint   %s", rewardMint)
	log.Printf("  reward vault  %s", rewardVault)

	const demoFunding = 1_000_000_000

	for i := 0; i < users; i++ {
		user := randomPubkey()

		userToken, _, err := token.DeriveTokenAddress(user, stakingMint)
		if err != nil {
			log.Fatalf("Bootstrap derive token address: %v", err)
		}
		process(engine, types.NewInstruction(
			types.TokenProgramID,
			(&token.InitializeAccountInstruction{}).Encode(),
			types.WritableMeta(userToken, false),
			types.Meta(stakingMint),
			types.Meta(user),
		), "initialize user token account")

		process(engine, types.NewInstruction(
			types.TokenProgramID,
			(&token.MintToInstruction{Amount: demoFunding}).Encode(),
			types.WritableMeta(stakingMint, false),
			types.WritableMeta(userToken, false),
			types.SignerMeta(admin),
		), "fund user")

		position, _, err := stakepool.DerivePositionAddress(poolAddress, user)
		if err != nil {
			log.Fatalf("Bootstrap derive position address: %v", err)
		}
		process(engine, types.NewInstruction(
			types.StakePoolProgramID,
			(&stakepool.CreateUserPositionInstruction{}).Encode(),
			types.WritableMeta(position, false),
			types.Meta(poolAddress),
			types.SignerMeta(user),
		), "create user position")

		log.Printf("Funded demo user %s (token account %s)", user, userToken)
	}

	return admin
}

// runSlotClock advances the engine slot until ctx is canceled.
func runSlotClock(ctx context.Context, engine *runtime.Engine, interval time.Duration) {
	if interval <= 0 {
		interval = 400 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.SetCurrentSlot(engine.CurrentSlot() + 1)
		}
	}
}

// runSnapshots exports periodic snapshots until ctx is canceled.
func runSnapshots(ctx context.Context, engine *runtime.Engine, path string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			manifest, err := snapshot.ExportFile(path, engine.DB(), engine.CurrentSlot())
			if err != nil {
				log.Printf("Snapshot export failed: %v", err)
				continue
			}
			log.Printf("Exported snapshot at slot %d (%d accounts, hash %s)",
				manifest.Slot, manifest.AccountCount, manifest.Hash)
		}
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("X1-StakePool %s (%s)\n", Version, GitCommit)
		fmt.Printf("Build time: %s\n", BuildTime)
		os.Exit(0)
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Starting X1-StakePool %s", Version)

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	applyConfigWithCLIOverrides(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize accounts database
	var db accounts.DB
	if *dataDir == ":memory:" {
		db = accounts.NewMemoryDB()
		log.Println("Using in-memory database")
	} else {
		dbPath := *dataDir + "/accounts"
		if err := os.MkdirAll(dbPath, 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		db, err = accounts.NewBadgerDB(dbPath)
		if err != nil {
			log.Fatalf("Failed to open accounts database: %v", err)
		}
		log.Printf("Opened BadgerDB at %s", dbPath)
	}
	defer db.Close()

	if *restoreSnapshot != "" {
		manifest, err := snapshot.RestoreFile(*restoreSnapshot, db)
		if err != nil {
			log.Fatalf("Failed to restore snapshot: %v", err)
		}
		log.Printf("Restored snapshot at slot %d (%d accounts)", manifest.Slot, manifest.AccountCount)
	}

	// Build the engine and register the programs
	engine := runtime.NewEngine(db)
	engine.RegisterProgram(types.TokenProgramID, token.New())
	engine.RegisterProgram(types.StakePoolProgramID, stakepool.New())
	log.Println("Registered token and stake pool programs")

	var admin types.Pubkey
	if *adminKey != "" {
		admin, err = types.PubkeyFromBase58(*adminKey)
		if err != nil {
			log.Fatalf("Invalid admin pubkey: %v", err)
		}
	}

	if *bootstrap {
		admin = bootstrapPool(engine, admin, *bootstrapUsers)
	}
	if admin.IsZero() {
		log.Fatal("No pool admin configured (set -admin or -bootstrap)")
	}

	registry := metrics.NewRegistry()

	handlers, err := rpc.NewHandlers(engine, admin)
	if err != nil {
		log.Fatalf("Failed to create relay handlers: %v", err)
	}
	handlers.RegisterMetrics(registry)
	log.Printf("Serving pool %s for admin %s", handlers.PoolAddress(), admin)

	go runSlotClock(ctx, engine, *slotInterval)

	if *enableMetrics {
		metricsServer := metrics.NewServer(registry, *metricsAddr)
		if err := metricsServer.Start(); err != nil {
			log.Fatalf("Failed to start metrics server: %v", err)
		}
		defer metricsServer.Stop(context.Background())
		log.Printf("Metrics server listening on %s", metricsServer.Addr())
	}

	if *snapshotPath != "" && *snapshotInterval > 0 {
		go runSnapshots(ctx, engine, *snapshotPath, *snapshotInterval)
		log.Printf("Snapshots every %s to %s", *snapshotInterval, *snapshotPath)
	}

	relayConfig := rpc.DefaultServerConfig()
	relayConfig.Address = *relayAddr
	relayConfig.EnableRateLimit = cfg.Relay.EnableRateLimit
	relayConfig.RateLimitRPS = cfg.Relay.RateLimitRPS
	relayConfig.RateLimitBurst = cfg.Relay.RateLimitBurst
	relayConfig.Logger = log.Default()

	server := rpc.NewServer(relayConfig, handlers)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()
	log.Printf("Relay server listening on %s", *relayAddr)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %s, shutting down", sig)
		cancel()
		if err := server.Stop(); err != nil {
			log.Printf("Relay shutdown error: %v", err)
		}
	case err := <-serverErr:
		if err != nil {
			log.Fatalf("Relay server failed: %v", err)
		}
	}

	if *snapshotPath != "" {
		manifest, err := snapshot.ExportFile(*snapshotPath, engine.DB(), engine.CurrentSlot())
		if err != nil {
			log.Printf("Final snapshot export failed: %v", err)
		} else {
			log.Printf("Exported final snapshot at slot %d (%d accounts)", manifest.Slot, manifest.AccountCount)
		}
	}

	log.Println("Shutdown complete")
}
