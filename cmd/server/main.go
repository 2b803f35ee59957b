package main

import (
	"log/slog"

	"github.com/BioHazard786/warpchat/internal/cmd"
	"github.com/BioHazard786/warpchat/internal/logging"
)

func main() {
	logging.Init(slog.LevelInfo)
	cmd.ExecuteServer()
}
