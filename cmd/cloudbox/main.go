package main

import (
	"context"
	"os"
)

const version = "0.1.0"

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	app.close()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}
