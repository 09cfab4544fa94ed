// Package main is the gmmreg command itself.
package main

import (
	"log"
	"os"

	"go.viam.com/gmmreg/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
