package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/fsmsim/pkg/persistence/middleware"
	"github.com/aretw0/fsmsim/pkg/ports"
	"github.com/spf13/cobra"
)

const (
	envEncryptionKey          = "FSMSIM_ENCRYPTION_KEY"
	envEncryptionFallbackKeys = "FSMSIM_ENCRYPTION_FALLBACK_KEYS"
)

func addEncryptionFlags(flags interface {
	String(name, value, usage string) *string
	StringSlice(name string, value []string, usage string) *[]string
}) {
	flags.String("encryption-key", "", "AES-256 key (hex or base64) to encrypt stored sessions; defaults to $"+envEncryptionKey)
	flags.StringSlice("encryption-fallback-keys", nil, "Previous keys still accepted for decryption; defaults to $"+envEncryptionFallbackKeys)
}

// encrypted wraps store with the encryption middleware when a key is configured
// by flag or environment. It returns store unchanged otherwise.
func encrypted(cmd *cobra.Command, store ports.SessionStore) (ports.SessionStore, error) {
	active, _ := cmd.Flags().GetString("encryption-key")
	if active == "" {
		active = os.Getenv(envEncryptionKey)
	}
	fallbacks, _ := cmd.Flags().GetStringSlice("encryption-fallback-keys")
	if len(fallbacks) == 0 {
		if env := os.Getenv(envEncryptionFallbackKeys); env != "" {
			fallbacks = strings.Split(env, ",")
		}
	}
	if active == "" {
		if len(fallbacks) > 0 {
			return nil, fmt.Errorf("fallback keys given without an active encryption key")
		}
		return store, nil
	}

	cfg := middleware.EncryptionConfig{}
	key, err := middleware.ParseKey(active)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	cfg.ActiveKey = key
	for i, fb := range fallbacks {
		key, err := middleware.ParseKey(fb)
		if err != nil {
			return nil, fmt.Errorf("invalid fallback key #%d: %w", i+1, err)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	logger.Debug("session encryption enabled", "fallback_keys", len(cfg.FallbackKeys))
	return middleware.Chain(store, middleware.NewEncryptionMiddleware(cfg)), nil
}
