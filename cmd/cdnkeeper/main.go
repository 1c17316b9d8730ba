package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/cdnkeeper/internal/cli"
)

func main() {

	app := cli.NewApp(os.Stdout, os.Stderr)

	if err := app.Run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "cdnkeeper: %v\n", err)
		os.Exit(1)
	}

}
