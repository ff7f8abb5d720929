package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ZelmaCorp/VotingTool-sub000/src/chainvotes"
	"github.com/ZelmaCorp/VotingTool-sub000/src/config"
	"github.com/ZelmaCorp/VotingTool-sub000/src/data"
	"github.com/ZelmaCorp/VotingTool-sub000/src/polkadot"
	"github.com/ZelmaCorp/VotingTool-sub000/src/reconcile"
	"github.com/ZelmaCorp/VotingTool-sub000/src/subscan"
	"github.com/ZelmaCorp/VotingTool-sub000/src/txlife"
	"github.com/ZelmaCorp/VotingTool-sub000/src/types"
	"github.com/ZelmaCorp/VotingTool-sub000/src/webserver"
	"github.com/ZelmaCorp/VotingTool-sub000/src/workflow"
)

var allModels = []interface{}{
	&types.Network{}, &types.Org{}, &types.OrgMember{},
	&types.Ref{}, &types.VoteDecision{}, &types.PendingTx{},
	&types.MemberAction{}, &types.Setting{},
}

func migrate(db *gorm.DB) {
	if err := db.AutoMigrate(allModels...); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func main() {
	db, err := data.ConnectFromEnv()
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	migrate(db)

	cfg := config.Load(db)

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb = data.MustRedis(cfg.RedisURL)
	}

	var networks []types.Network
	if err := db.Find(&networks).Error; err != nil {
		log.Fatalf("load networks: %v", err)
	}

	names := make(map[uint8]string)
	queriers := make(map[uint8]chainvotes.Querier)
	indexers := make(map[uint8]*subscan.Client)

	for _, network := range networks {
		names[network.ID] = network.Name

		client, err := polkadot.NewClient(network.URL)
		if err != nil {
			// Degrade: reconciliation still runs for reachable networks.
			log.Printf("main: connect %s rpc: %v", network.Name, err)
		} else {
			queriers[network.ID] = client
		}

		endpoint := network.SubscanURL
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://%s.api.subscan.io", strings.ToLower(network.Name))
		}
		indexers[network.ID] = subscan.NewClient(endpoint, cfg.SubscanAPIKey)
	}

	chainSrc := chainvotes.NewSource(queriers, names, nil)
	indexSrc := subscan.NewSource(indexers, names, cfg.IndexerRows)
	txMgr := txlife.NewManager(db)
	reconciler := reconcile.New(db, chainSrc, indexSrc, txMgr, rdb, cfg.TxRetention)
	wfMgr := workflow.NewManager(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go reconcile.Service(ctx, reconciler, cfg.ReconcileInterval)
	go workflow.SweepService(ctx, wfMgr, cfg.SweepInterval)

	router := webserver.New(db, reconciler, wfMgr)
	go func() {
		if err := webserver.Run(ctx, router, cfg.Port); err != nil {
			log.Printf("webserver: %v", err)
		}
	}()

	log.Printf("votingtool: started (%d networks, reconcile every %s, sweep every %s)",
		len(networks), cfg.ReconcileInterval, cfg.SweepInterval)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	cancel()
}
