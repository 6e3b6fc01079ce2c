// Package main is the entry point for oas-core, the ingestion and
// indexing service for the audio search platform.
package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"oasgo.dev/core/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
