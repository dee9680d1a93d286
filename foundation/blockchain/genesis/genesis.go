// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date              time.Time `json:"date"`
	Difficulty        uint      `json:"difficulty"`         // How difficult it needs to be to solve the work problem.
	EvictionThreshold int       `json:"eviction_threshold"` // Blocks a branch may trail the leader before it's dropped.
}

// Default returns the settings used when no genesis file is provided.
func Default() Genesis {
	return Genesis{
		Date:              time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC),
		Difficulty:        1,
		EvictionThreshold: 3,
	}
}

// =============================================================================

// Load opens and consumes the genesis file. An empty path returns the
// default settings.
func Load(path string) (Genesis, error) {
	if path == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	err = json.Unmarshal(content, &genesis)
	if err != nil {
		return Genesis{}, fmt.Errorf("unmarshal genesis %q: %w", path, err)
	}

	if genesis.Difficulty > 32 {
		return Genesis{}, fmt.Errorf("genesis %q: difficulty %d exceeds the id length", path, genesis.Difficulty)
	}

	if genesis.EvictionThreshold < 0 {
		return Genesis{}, fmt.Errorf("genesis %q: negative eviction threshold %d", path, genesis.EvictionThreshold)
	}

	return genesis, nil
}
