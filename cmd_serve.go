package main

import (
	"math/big"
	"net/http"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"go.opencensus.io/stats/view"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/multisig_coordinator/chain"
	"github.com/rqzrqh/multisig_coordinator/common"
	"github.com/rqzrqh/multisig_coordinator/dao"
	"github.com/rqzrqh/multisig_coordinator/engine"
	"github.com/rqzrqh/multisig_coordinator/executor"
	"github.com/rqzrqh/multisig_coordinator/server"

	_ "net/http/pprof"
)

var cmdServe = &cli.Command{
	Name:  "serve",
	Usage: "Start the coordinator http service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "listen",
			Value:   ":8080",
			EnvVars: []string{"MSIG_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "db",
			Usage:   "root:123456@tcp(127.0.0.1:3306)/msig?parseTime=true or sqlite:/path/msig.db",
			EnvVars: []string{"MSIG_DB"},
		},
		&cli.StringFlag{
			Name:    "redis",
			Usage:   "127.0.0.1:6379, events are not published when empty",
			EnvVars: []string{"MSIG_REDIS"},
		},
		&cli.BoolFlag{
			Name:    "redis-lock",
			Usage:   "take account locks in redis so several instances can share the database",
			EnvVars: []string{"MSIG_REDIS_LOCK"},
		},
		&cli.DurationFlag{
			Name:  "lock-ttl",
			Value: 30 * time.Second,
		},
		&cli.StringFlag{
			Name:    "node",
			Usage:   "node rpc url or multiaddr",
			EnvVars: []string{"MSIG_NODE"},
		},
		&cli.StringFlag{
			Name:    "bundler",
			Usage:   "bundler rpc url or multiaddr, defaults to the node",
			EnvVars: []string{"MSIG_BUNDLER"},
		},
		&cli.StringFlag{
			Name:    "bundler-token",
			EnvVars: []string{"MSIG_BUNDLER_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "entry-point",
			Usage:   "must match the entry point recorded by initdb when set",
			EnvVars: []string{"MSIG_ENTRYPOINT"},
		},
		&cli.StringFlag{
			Name:    "beneficiary",
			EnvVars: []string{"MSIG_BENEFICIARY"},
		},
		&cli.DurationFlag{
			Name:    "chain-timeout",
			Value:   engine.DefaultChainTimeout,
			EnvVars: []string{"MSIG_CHAIN_TIMEOUT"},
		},
		&cli.Uint64Flag{
			Name:  "call-gas",
			Value: executor.DefaultConfig().CallGasLimit,
		},
		&cli.Uint64Flag{
			Name:  "verification-gas",
			Value: executor.DefaultConfig().VerificationGasLimit,
		},
		&cli.Uint64Flag{
			Name:  "pre-verification-gas",
			Value: executor.DefaultConfig().PreVerificationGas,
		},
		&cli.StringFlag{
			Name:  "max-fee",
			Usage: "max fee per gas in wei",
			Value: executor.DefaultConfig().MaxFeePerGas.String(),
		},
		&cli.StringFlag{
			Name:  "max-priority-fee",
			Usage: "max priority fee per gas in wei",
			Value: executor.DefaultConfig().MaxPriorityFeePerGas.String(),
		},
		&cli.BoolFlag{
			Name:    "reject-active-overwrite",
			Usage:   "refuse new proposals while the account has a pending or ready request",
			EnvVars: []string{"MSIG_REJECT_ACTIVE_OVERWRITE"},
		},
		&cli.StringFlag{
			Name:  "pprof",
			Usage: "pprof listen address, empty disables it",
			Value: "127.0.0.1:6060",
		},
		&cli.StringFlag{
			Name:        "log-level",
			Value:       "info",
			DefaultText: "info",
		},
	},
	Action: func(cctx *cli.Context) error {
		if addr := cctx.String("pprof"); addr != "" {
			go func() {
				http.ListenAndServe(addr, nil) //nolint:errcheck
			}()
		}

		ctx := reqContext(cctx)

		ll := cctx.String("log-level")
		if err := logging.SetLogLevel("*", ll); err != nil {
			return err
		}
		if err := logging.SetLogLevel("rpc", "error"); err != nil {
			return err
		}

		db, err := dao.Open(cctx.String("db"), gormLogger())
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		log.Info("sql ping success")

		svc, err := dao.GetServiceConfig(db)
		if err != nil {
			return xerrors.Errorf("load service config, run initdb first: %w", err)
		}
		if ep := cctx.String("entry-point"); ep != "" && !strings.EqualFold(ep, svc.EntryPoint) {
			return xerrors.Errorf("entry point %s differs from %s recorded by initdb", ep, svc.EntryPoint)
		}

		if cctx.String("node") == "" {
			return xerrors.New("no node rpc")
		}
		if err := view.Register(chain.DefaultViews...); err != nil {
			return err
		}
		client, closer, err := chain.Dial(ctx, cctx.String("node"), cctx.String("bundler"), cctx.String("bundler-token"))
		if err != nil {
			return err
		}
		defer closer()

		chainID, err := client.ChainID(ctx)
		if err != nil {
			return xerrors.Errorf("read chain id: %w", err)
		}
		if chainID != svc.ChainID {
			return xerrors.Errorf("node is on chain %d, database was initialized for %d", chainID, svc.ChainID)
		}
		log.Infow("connected to chain", "chain_id", chainID, "entry_point", svc.EntryPoint)

		var (
			rds      *redis.Client
			notifier engine.Notifier = engine.NopNotifier
			locker   dao.Locker
		)
		if addr := cctx.String("redis"); addr != "" {
			rds = redis.NewClient(&redis.Options{
				Addr:     addr,
				Password: "",
				DB:       0,
			})
			defer rds.Close()
			pong, err := rds.Ping(ctx).Result()
			if err != nil {
				return err
			}
			log.Info("redis response ", pong)
			notifier = dao.NewRedisNotifier(rds)
		}

		if cctx.Bool("redis-lock") {
			if rds == nil {
				return xerrors.New("--redis-lock needs --redis")
			}
			locker = dao.NewRedisLocker(rds, cctx.Duration("lock-ttl"))
		} else {
			if err := dao.GetDatabaseLock(db); err != nil {
				return xerrors.Errorf("another instance holds the database: %w", err)
			}
			defer dao.ReleaseDatabaseLock(db) //nolint:errcheck
			locker = dao.NewMemoryLocker()
		}

		execCfg, err := executorConfig(cctx, svc.EntryPoint)
		if err != nil {
			return err
		}

		store := dao.NewDao(db)
		eng := engine.NewEngine(engine.Config{
			ChainTimeout:          cctx.Duration("chain-timeout"),
			RejectActiveOverwrite: cctx.Bool("reject-active-overwrite"),
		}, store, store, store, client, locker, notifier)
		exec := executor.NewExecutor(execCfg, store, store, client, locker, notifier)

		srv := server.NewServer(server.Config{Listen: cctx.String("listen")}, eng, exec)
		srv.SetReady(true)
		return srv.ListenAndServe(ctx)
	},
}

func executorConfig(cctx *cli.Context, entryPoint string) (executor.Config, error) {
	cfg := executor.Config{
		EntryPoint:           ethcommon.HexToAddress(entryPoint),
		CallGasLimit:         cctx.Uint64("call-gas"),
		VerificationGasLimit: cctx.Uint64("verification-gas"),
		PreVerificationGas:   cctx.Uint64("pre-verification-gas"),
		ChainTimeout:         cctx.Duration("chain-timeout"),
	}

	if b := cctx.String("beneficiary"); b != "" {
		addr, err := common.ParseAddress(b)
		if err != nil {
			return cfg, xerrors.Errorf("beneficiary: %w", err)
		}
		cfg.Beneficiary = addr
	}

	var ok bool
	if cfg.MaxFeePerGas, ok = new(big.Int).SetString(cctx.String("max-fee"), 10); !ok {
		return cfg, xerrors.Errorf("max-fee %q is not an integer", cctx.String("max-fee"))
	}
	if cfg.MaxPriorityFeePerGas, ok = new(big.Int).SetString(cctx.String("max-priority-fee"), 10); !ok {
		return cfg, xerrors.Errorf("max-priority-fee %q is not an integer", cctx.String("max-priority-fee"))
	}
	return cfg, nil
}
