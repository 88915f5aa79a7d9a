package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeydtaylor/agegate/pkg/serverfx"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// loadDotEnv reads .env when present; a missing file is fine.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("load .env file: %w", err)
		}
	}
	return nil
}

func main() {
	if err := loadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fx.New(
		serverfx.Module(serverfx.WithService("agegate")),
	).Run()
}
