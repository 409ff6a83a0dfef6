// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/deckdev/deck/pkg/logging"
)

func main() {
	logger := logging.New(logging.Config{
		Level:   logLevel(),
		LogDir:  "~/.deck/logs",
		Service: "deck",
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func logLevel() logging.Level {
	if os.Getenv("DECK_DEBUG") != "" {
		return logging.LevelDebug
	}
	return logging.LevelWarn
}
