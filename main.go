package main

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
)

var (
	log = logging.Logger("msig")
)

const version = "0.3.0"

func main() {
	if err := logging.SetLogLevel("*", "info"); err != nil {
		log.Fatal(err)
	}
	app := &cli.App{
		Name:    "msig",
		Usage:   "multisig proposal, signature, and execution coordinator",
		Version: version,
		Flags:   []cli.Flag{},
		Commands: []*cli.Command{
			cmdInitDb,
			cmdServe,
			cmdMessage,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
