// Command nasty-data downloads social media archives and indexes them into
// Elasticsearch.
package main

import (
	"os"

	"github.com/meigma/nastydata/cmd/nasty-data/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
