package pipeline

import (
	"fmt"

	"github.com/open-edge-platform/ossa-collector/internal/archive"
	"github.com/open-edge-platform/ossa-collector/internal/config"
	"github.com/open-edge-platform/ossa-collector/internal/license"
	"github.com/open-edge-platform/ossa-collector/internal/repology"
	"github.com/open-edge-platform/ossa-collector/internal/source"
	"github.com/open-edge-platform/ossa-collector/internal/swhid"
	"github.com/open-edge-platform/ossa-collector/internal/workspace"
)

// New builds a Driver from the global configuration.
func New(cfg *config.GlobalConfig) (*Driver, error) {
	src, err := source.New(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	extractor, err := archive.New(cfg.Extractor, cfg.Source.Sudo)
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}
	resolver, err := swhid.New(cfg.Identifier.Mode, cfg.Identifier.Command)
	if err != nil {
		return nil, fmt.Errorf("identifier: %w", err)
	}
	table, err := license.LoadTable(cfg.LicenseMap)
	if err != nil {
		return nil, err
	}
	ws, err := workspace.New(cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		Lister:         src,
		Retriever:      src,
		Extractor:      extractor,
		Resolver:       resolver,
		Classifier:     license.NewClassifier(table),
		Workspace:      ws,
		OutputDir:      cfg.OutputDir,
		Publisher:      cfg.Publisher,
		ValidateOutput: cfg.ValidateOutput,
	}

	if cfg.Lookup.Enabled {
		timeout, err := cfg.LookupTimeout()
		if err != nil {
			return nil, err
		}
		client, err := repology.NewClient(cfg.Lookup.BaseURL, timeout)
		if err != nil {
			return nil, err
		}
		d.Lookup = client
	}
	return d, nil
}
