package main

import (
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/multisig_coordinator/chain"
	"github.com/rqzrqh/multisig_coordinator/dao"
	"github.com/rqzrqh/multisig_coordinator/initdb"
)

const defaultEntryPoint = "0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"

var cmdInitDb = &cli.Command{
	Name:  "initdb",
	Usage: "Create tables and record the chain the service runs against",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Usage:   "root:123456@tcp(127.0.0.1:3306)/msig?parseTime=true or sqlite:/path/msig.db",
			EnvVars: []string{"MSIG_DB"},
		},
		&cli.StringFlag{
			Name:    "node",
			Usage:   "node rpc, asked for the chain id when --chain-id is not set",
			EnvVars: []string{"MSIG_NODE"},
		},
		&cli.Uint64Flag{
			Name:    "chain-id",
			EnvVars: []string{"MSIG_CHAIN_ID"},
		},
		&cli.StringFlag{
			Name:    "entry-point",
			Value:   defaultEntryPoint,
			EnvVars: []string{"MSIG_ENTRYPOINT"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := reqContext(cctx)

		db, err := dao.Open(cctx.String("db"), gormLogger())
		if err != nil {
			return err
		}

		chainID := cctx.Uint64("chain-id")
		if chainID == 0 {
			if cctx.String("node") == "" {
				return xerrors.New("either --chain-id or --node is required")
			}
			client, closer, err := chain.Dial(ctx, cctx.String("node"), "", "")
			if err != nil {
				return err
			}
			defer closer()

			chainID, err = client.ChainID(ctx)
			if err != nil {
				return xerrors.Errorf("read chain id: %w", err)
			}
		}

		return initdb.InitDatabase(ctx, db, chainID, cctx.String("entry-point"))
	},
}
