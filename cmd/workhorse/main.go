package main

import (
	"context"
	"fmt"
	"os"

	"workhorse/internal/cli"
	"workhorse/internal/handler"
)

func main() {
	registry := handler.NewRegistry()
	registerDemoHandlers(registry)

	root := cli.BuildRoot(registry)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
