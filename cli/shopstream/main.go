package main

import (
	"os"

	shopstreamcmder "github.com/papercomputeco/shopstream/cmd/shopstream"
)

func main() {
	cmd := shopstreamcmder.NewShopstreamCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
