// Package data loads the duel data set (base stats, buff catalog and roll
// settings) from disk and announces it on the event bus.
package data

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mine-duel/duel-server-go/internal/events"
	"github.com/mine-duel/duel-server-go/internal/game/roll"
	"github.com/mine-duel/duel-server-go/internal/game/stats"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog wraps every validation problem found in a data set.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Loaded is published once a data set has been read and validated.
type Loaded struct {
	Path    string
	Catalog *stats.Catalog
}

// TopicLoaded announces that game data is available.
var TopicLoaded = events.NewTopic[Loaded]("data_loaded")

// Load reads a data set from a YAML file. JSON files load as well since
// JSON is valid YAML.
func Load(path string) (*stats.Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading data %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a data set.
func Parse(raw []byte) (*stats.Catalog, error) {
	var catalog stats.Catalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parsing data: %w", err)
	}
	return &catalog, nil
}

// Validate checks the data set against the rules the core relies on:
// unique ids, buffs that only touch known stats, bound stats present and a
// usable buff count range.
func Validate(catalog *stats.Catalog, bindings stats.Bindings) error {
	var problems []error

	statIDs := make(map[int]bool, len(catalog.Stats))
	for _, s := range catalog.Stats {
		if statIDs[s.ID] {
			problems = append(problems, fmt.Errorf("duplicate stat id %d", s.ID))
		}
		statIDs[s.ID] = true
	}

	buffIDs := make(map[int]bool, len(catalog.Buffs))
	for _, b := range catalog.Buffs {
		if buffIDs[b.ID] {
			problems = append(problems, fmt.Errorf("duplicate buff id %d", b.ID))
		}
		buffIDs[b.ID] = true
		for _, bs := range b.Stats {
			if !statIDs[bs.StatID] {
				problems = append(problems, fmt.Errorf("buff %d references unknown stat %d", b.ID, bs.StatID))
			}
		}
	}

	names := []string{"health", "armor", "damage", "lifesteal"}
	for i, id := range bindings.IDs() {
		if _, ok := catalog.Stat(id); !ok {
			problems = append(problems, fmt.Errorf("%s stat %d is not defined", names[i], id))
		}
	}

	settings := catalog.Settings
	if settings.BuffCountMin < 0 || settings.BuffCountMin > settings.BuffCountMax {
		problems = append(problems, fmt.Errorf("buff count range [%d, %d] is invalid",
			settings.BuffCountMin, settings.BuffCountMax))
	}
	if settings.BuffCountMax > roll.MaxBuffCount {
		problems = append(problems, fmt.Errorf("buff count max %d exceeds %d",
			settings.BuffCountMax, roll.MaxBuffCount))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(problems...))
	}
	return nil
}

// Loader reads the data set off the owner goroutine and hands it back
// through Ready. The owner publishes TopicLoaded, keeping the bus on a
// single goroutine.
type Loader struct {
	path     string
	bindings stats.Bindings
	logger   *zap.Logger
	ready    chan *stats.Catalog
}

// NewLoader creates a loader for path.
func NewLoader(path string, bindings stats.Bindings, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		path:     path,
		bindings: bindings,
		logger:   logger,
		ready:    make(chan *stats.Catalog, 1),
	}
}

// Ready delivers the catalog once Run succeeds. It is closed when Run returns.
func (l *Loader) Ready() <-chan *stats.Catalog {
	return l.ready
}

// Run loads and validates the data set.
func (l *Loader) Run(ctx context.Context) error {
	defer close(l.ready)

	catalog, err := Load(l.path)
	if err != nil {
		return err
	}
	if err := Validate(catalog, l.bindings); err != nil {
		return fmt.Errorf("data %s: %w", l.path, err)
	}

	l.logger.Info("game data loaded",
		zap.String("path", l.path),
		zap.Int("stats", len(catalog.Stats)),
		zap.Int("buffs", len(catalog.Buffs)),
	)

	select {
	case l.ready <- catalog:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Announce publishes catalog on bus.
func Announce(bus *events.Bus, path string, catalog *stats.Catalog) {
	events.Publish(bus, TopicLoaded, Loaded{Path: path, Catalog: catalog})
}
