// File: cmd/server/logger.go
package main

import (
	"log"

	"artify/internal/config"
	"artify/internal/platform/logger"

	"go.uber.org/zap"
)

// provideLogger builds the application logger; its cleanup flushes it.
func provideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	l, err := logger.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return l, func() {
		l.Info("Executing cleanup tasks...")
		if err := l.Sync(); err != nil {
			log.Printf("ERROR: Failed to sync logger during cleanup: %v", err)
		}
	}, nil
}
