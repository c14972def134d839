package main

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"

	"github.com/rqzrqh/multisig_coordinator/common"
	"github.com/rqzrqh/multisig_coordinator/engine"
)

var cmdMessage = &cli.Command{
	Name:  "message",
	Usage: "Print the message owners sign for a proposal, optionally signing it",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "account", Required: true},
		&cli.StringFlag{Name: "target", Required: true},
		&cli.StringFlag{Name: "value", Value: "0"},
		&cli.StringFlag{Name: "data", Value: "0x"},
		&cli.StringFlag{
			Name:    "key",
			Usage:   "hex private key, prints a signature body when set",
			EnvVars: []string{"MSIG_KEY"},
		},
	},
	Action: func(cctx *cli.Context) error {
		msg := &engine.ProposeMsg{
			Account: cctx.String("account"),
			Target:  cctx.String("target"),
			Value:   cctx.String("value"),
			Data:    cctx.String("data"),
		}
		digest, err := msg.Message()
		if err != nil {
			return err
		}

		if cctx.String("key") == "" {
			fmt.Println(hexutil.Encode(digest))
			return nil
		}

		signer, err := common.NewKeySigner(cctx.String("key"))
		if err != nil {
			return err
		}
		sig, err := signer.Sign(digest)
		if err != nil {
			return err
		}
		account, err := common.CanonicalAddress(msg.Account)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(engine.SubmitSignatureMsg{
			Account:   account,
			Signer:    signer.Address(),
			Message:   hexutil.Encode(digest),
			Signature: hexutil.Encode(sig),
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
