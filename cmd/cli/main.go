package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/admincli"
)

func main() {

	app := admincli.NewApp(os.Stdin, os.Stdout)

	if err := app.Run(os.Args[1:]); err != nil {
		if !errors.Is(err, admincli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

}
