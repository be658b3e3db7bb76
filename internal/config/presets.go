// Package config provides HCL-defined room presets: named
// starting-stack/blind/ante templates an operator ships alongside the
// binary so createRoom callers can select "micro", "standard", "high" by
// name instead of spelling out every field.
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// RoomPreset is one named room template, parsed from an HCL "preset"
// block.
type RoomPreset struct {
	Name             string `hcl:"name,label"`
	MaxPlayers       int    `hcl:"max_players"`
	StartingStack    int    `hcl:"starting_stack"`
	SmallBlind       int    `hcl:"small_blind"`
	BigBlind         int    `hcl:"big_blind"`
	Ante             int    `hcl:"ante,optional"`
	HandDelaySeconds int    `hcl:"hand_delay_seconds,optional"`
	FilterProfanity  bool   `hcl:"filter_profanity,optional"`
	Public           bool   `hcl:"public,optional"`
}

type presetsFile struct {
	Presets []RoomPreset `hcl:"preset,block"`
}

// PresetCatalog is a name-indexed set of room presets.
type PresetCatalog map[string]RoomPreset

// LoadPresets parses an HCL presets file (e.g. rooms.hcl) into a catalog
// keyed by preset name.
func LoadPresets(path string) (PresetCatalog, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parsing %s: %w", path, diags)
	}

	var parsed presetsFile
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("config: decoding %s: %w", path, diags)
	}

	catalog := make(PresetCatalog, len(parsed.Presets))
	for _, p := range parsed.Presets {
		catalog[p.Name] = p
	}
	return catalog, nil
}

// DefaultPresets is the built-in catalog used when no rooms.hcl is
// supplied, mirroring a minimal version of what an operator's file would
// define.
func DefaultPresets() PresetCatalog {
	return PresetCatalog{
		"standard": {
			Name: "standard", MaxPlayers: 8, StartingStack: 1000,
			SmallBlind: 5, BigBlind: 10, HandDelaySeconds: 3,
		},
		"micro": {
			Name: "micro", MaxPlayers: 6, StartingStack: 200,
			SmallBlind: 1, BigBlind: 2, HandDelaySeconds: 3,
		},
		"high": {
			Name: "high", MaxPlayers: 6, StartingStack: 10000,
			SmallBlind: 50, BigBlind: 100, Ante: 10, HandDelaySeconds: 2,
		},
	}
}
