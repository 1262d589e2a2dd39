// Package main is the entry point for the dataverse dev proxy CLI.
package main

import (
	"os"

	"github.com/stacklok/dataverse-devauth/cmd/dvproxy/app"
	"github.com/stacklok/dataverse-devauth/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
