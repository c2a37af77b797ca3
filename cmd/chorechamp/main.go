package main

import (
	"context"
	"os"

	"github.com/Susa-Sek/chorechamp-sub001/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
