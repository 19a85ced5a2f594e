package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MayankTamakuwala/TranscriBelt/internal/api"
	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
)

type rootFlags struct {
	config  string
	server  string
	envFile string
	json    bool
}

type commandContext struct {
	flags *rootFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

// JSONMode reports whether output should be JSON.
func (c *commandContext) JSONMode() bool {
	return c.flags.json
}

// serverURL picks --server, then api.public_url, then api.bind.
func (c *commandContext) serverURL() (string, error) {
	if server := strings.TrimSpace(c.flags.server); server != "" {
		return server, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if public := strings.TrimSpace(cfg.API.PublicURL); public != "" {
		return public, nil
	}
	return "http://" + cfg.API.Bind, nil
}

func (c *commandContext) client() (*api.Client, error) {
	server, err := c.serverURL()
	if err != nil {
		return nil, err
	}
	return api.NewClient(server, nil)
}

// withQueue opens the queue database for commands that bypass the ingress.
func (c *commandContext) withQueue(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// loadEnvFile applies KEY=VALUE pairs without overriding the environment.
func loadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
