package main

import (
	"os"

	"github.com/pokedi/edfc/internal/cli"
)

func main() {
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
