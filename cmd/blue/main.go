package main

import (
	"os"

	"github.com/eugenenazirov/bluegreen/internal/config"
	"github.com/eugenenazirov/bluegreen/internal/launcher"
)

func main() {
	launcher.Main("blue-pool", config.BlueDefaults, os.Args[1:])
}
