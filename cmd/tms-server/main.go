package main

import (
	"context"
	"fmt"
	"os"

	"tms-server/internal/cmd"
)

func main() {
	if err := cmd.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "tms-server failed: %v\n", err)
		os.Exit(1)
	}
}
