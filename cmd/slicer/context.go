package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"slicer/internal/config"
	"slicer/internal/docstore"
	"slicer/internal/exports"
	"slicer/internal/logging"
	"slicer/internal/prefs"
	"slicer/internal/worker"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// services bundles the stores and the worker link a command operates on.
// Opened per invocation and torn down when the command returns.
type services struct {
	cfg    *config.Config
	logger *slog.Logger
	prefs  *prefs.Store
	docs   *docstore.Store
	meta   *exports.MetadataStore
	sync   *exports.Synchronizer
	conn   *worker.Connection
}

func (c *commandContext) withServices(fn func(*services) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	prefStore, err := prefs.Open(cfg.Paths.PrefsPath)
	if err != nil {
		return err
	}

	docs, err := docstore.Open(cfg)
	if err != nil {
		return err
	}
	defer docs.Close()

	meta, err := exports.OpenMetadata(cfg)
	if err != nil {
		return err
	}
	defer meta.Close()

	registry := exports.NewRegistry(cfg.Export.Scales)
	syncer := exports.NewSynchronizer(registry, meta, logger)
	conn := worker.NewConnection(cfg, prefStore, logger)
	defer conn.Close()

	return fn(&services{
		cfg:    cfg,
		logger: logger,
		prefs:  prefStore,
		docs:   docs,
		meta:   meta,
		sync:   syncer,
		conn:   conn,
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// writeJSON emits v as indented JSON for the --json output mode.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
