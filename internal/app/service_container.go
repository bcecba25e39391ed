package app

import (
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"relayer-backend/internal/config"
	"relayer-backend/internal/db"
	"relayer-backend/internal/events"
	"relayer-backend/internal/hashing"
	"relayer-backend/internal/ledger"
	"relayer-backend/internal/merkle"
	"relayer-backend/internal/nullifier"
	"relayer-backend/internal/relay"
	"relayer-backend/internal/repository"
	"relayer-backend/internal/ws"
	"relayer-backend/internal/zkproof"
)

// ServiceContainer holds every wired service. Built once at startup.
type ServiceContainer struct {
	// Database
	DB *gorm.DB

	// Repositories
	WithdrawalRepo repository.WithdrawalRepository
	RootRepo       repository.RootRepository

	// Crypto
	Engine   *hashing.Engine
	Verifier zkproof.Verifier

	// State
	Tree  *merkle.Accumulator
	Sync  *events.SyncService
	Cache *nullifier.MemoryCache

	// Ledger & pipeline
	LedgerClient ledger.Client
	Pipeline     *relay.Pipeline

	// Push & gating
	Hub      *ws.Hub
	RateGate *relay.RateGate

	Logger *logrus.Logger
}

// NewServiceContainer wires all services from AppConfig. Any failure is
// fatal: a partially wired relayer must not serve traffic.
func NewServiceContainer(logger *logrus.Logger) *ServiceContainer {
	cfg := config.AppConfig
	if cfg == nil {
		log.Fatalf("Configuration must be loaded before building services")
	}

	c := &ServiceContainer{Logger: logger}

	// Hash engine with a pinned parameter set, cross-checked against the
	// circuit vectors before anything else touches it.
	paramSet := cfg.ZK.ParameterSet
	if paramSet == "" {
		paramSet = hashing.ParamSetMiMCBN254
	}
	engine, err := hashing.New(paramSet)
	if err != nil {
		log.Fatalf("Failed to initialize hash engine: %v", err)
	}
	if cfg.ZK.HashVectorPath != "" {
		vf, err := hashing.LoadVectorFile(cfg.ZK.HashVectorPath)
		if err != nil {
			log.Fatalf("Failed to load hash test vectors: %v", err)
		}
		if err := engine.Verify(vf); err != nil {
			log.Fatalf("Hash engine failed circuit vector check: %v", err)
		}
		log.Printf("✅ Hash engine verified against %d circuit vectors", len(vf.Vectors))
	}
	c.Engine = engine

	// Proof codec startup check, then the verifying key.
	if err := zkproof.SelfCheck(); err != nil {
		log.Fatalf("Proof codec self-check failed: %v", err)
	}
	if cfg.Relay.VerifyProofs {
		vk, err := zkproof.LoadVerifyingKey(cfg.ZK.VerifyingKeyPath)
		if err != nil {
			log.Fatalf("Failed to load verifying key: %v", err)
		}
		c.Verifier = zkproof.NewGroth16Verifier(vk)
		log.Printf("✅ Verifying key loaded (%d public inputs)", len(vk.IC)-1)
	} else {
		log.Printf("⚠️ Proof verification is DISABLED; relying on on-ledger verification only")
	}

	// Accumulator, restored from disk when a snapshot exists.
	c.Tree = loadOrCreateTree(engine, cfg)

	// Database is optional; without it the journal and audit trail are off.
	if cfg.Database.DSN != "" {
		db.InitDB()
		c.DB = db.DB
		c.WithdrawalRepo = repository.NewWithdrawalRepository(c.DB)
		c.RootRepo = repository.NewRootRepository(c.DB)
	} else {
		log.Printf("⚠️ No database configured; withdrawal journal disabled")
	}

	c.Sync = events.NewSyncService(c.Tree, c.RootRepo)
	c.Cache = nullifier.NewMemoryCache()
	c.LedgerClient = ledger.NewRPCClient(cfg.Ledger.RPCEndpoint,
		time.Duration(cfg.Ledger.Timeout)*time.Second)
	c.Hub = ws.NewHub(logger)
	if cfg.RateLimit.Enabled {
		c.RateGate = relay.NewRateGate(cfg.RateLimit.PerKeyTokens, cfg.RateLimit.GlobalTokens,
			time.Duration(cfg.RateLimit.PeriodSec)*time.Second)
	}

	var journal relay.Journal
	if c.WithdrawalRepo != nil {
		journal = repository.NewWithdrawalJournal(c.WithdrawalRepo)
	}

	pipeline, err := relay.NewPipeline(
		relay.Config{
			RelayerAddress:  cfg.Relay.RelayerAddress,
			ProgramScope:    cfg.Ledger.ProgramScope,
			FeeBps:          cfg.Relay.FeeBps,
			MinAmount:       cfg.Relay.MinAmount,
			MaxAmount:       cfg.Relay.MaxAmount,
			SupportedAssets: cfg.Relay.SupportedAssets,
			VerifyProofs:    cfg.Relay.VerifyProofs,
		},
		c.Verifier,
		c.Cache,
		c.LedgerClient,
		relay.RetryPolicy{
			MaxAttempts: cfg.Relay.MaxAttempts,
			BaseDelay:   cfg.Relay.BaseDelay(),
			JitterMax:   cfg.Relay.JitterMax(),
			Budget:      cfg.Relay.RetryBudget(),
		},
		logger,
		journal,
		c.Hub,
	)
	if err != nil {
		log.Fatalf("Failed to build relay pipeline: %v", err)
	}
	c.Pipeline = pipeline

	return c
}

// SaveTreeSnapshot writes the accumulator to the configured state path.
func (c *ServiceContainer) SaveTreeSnapshot() {
	path := config.AppConfig.Merkle.StatePath
	if path == "" {
		return
	}
	data, err := c.Tree.Serialize()
	if err != nil {
		log.Printf("⚠️ Failed to serialize accumulator: %v", err)
		return
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		log.Printf("⚠️ Failed to write accumulator snapshot: %v", err)
		return
	}
	log.Printf("✅ Accumulator snapshot saved (%d leaves)", c.Tree.NextIndex())
}

func loadOrCreateTree(engine *hashing.Engine, cfg *config.Config) *merkle.Accumulator {
	if cfg.Merkle.StatePath != "" {
		if data, err := os.ReadFile(cfg.Merkle.StatePath); err == nil {
			tree, err := merkle.Deserialize(engine, data)
			if err != nil {
				log.Fatalf("Accumulator snapshot at %s is corrupt: %v", cfg.Merkle.StatePath, err)
			}
			log.Printf("✅ Accumulator restored from snapshot (%d leaves)", tree.NextIndex())
			return tree
		}
		log.Printf("⚠️ No accumulator snapshot at %s; starting empty", cfg.Merkle.StatePath)
	}
	tree, err := merkle.New(engine, cfg.Merkle.Depth, cfg.Merkle.HistorySize)
	if err != nil {
		log.Fatalf("Failed to create accumulator: %v", err)
	}
	return tree
}
