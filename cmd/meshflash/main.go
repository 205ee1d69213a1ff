package main

import (
	"os"

	"github.com/buckleypaul/meshflash/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
