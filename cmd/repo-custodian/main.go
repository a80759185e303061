// Package main is the entry point for the repository custodian server.
package main

import (
	"os"

	"github.com/crpaas/repo-custodian/cmd/repo-custodian/app"
)

func main() {
	app.InitLogging()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
