package main

import (
	"context"
	"os"

	tiermemcmder "github.com/papercomputeco/tiermem/cmd/tiermem"
)

func main() {
	cmd := tiermemcmder.NewTiermemCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
