package main

import (
	"os"

	"github.com/eugenenazirov/bluegreen/internal/config"
	"github.com/eugenenazirov/bluegreen/internal/launcher"
)

func main() {
	launcher.Main("green-pool", config.GreenDefaults, os.Args[1:])
}
