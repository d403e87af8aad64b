package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/amoylab/oscbridge/internal/common/cnst"
)

// mappingFile is the on-disk format of a command mapping file:
//
//	[mapping]
//	Mute = "mute"
//	Shot = "screenshot"
type mappingFile struct {
	Mapping map[string]string `toml:"mapping"`
}

// LoadMappingFile reads a TOML mapping file and returns the address -> command
// mapping it describes. Parameter names are prefixed with the avatar
// parameter address prefix.
func LoadMappingFile(path string) (map[string]string, error) {
	var f mappingFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mapping file: %w", err)
	}
	if !md.IsDefined("mapping") {
		return nil, fmt.Errorf("command file does not contain a [mapping] section")
	}

	mapping := make(map[string]string, len(f.Mapping))
	for param, command := range f.Mapping {
		if strings.Contains(param, " ") {
			return nil, fmt.Errorf("parameter '%s' contains spaces", param)
		}
		if strings.TrimSpace(command) == "" {
			return nil, fmt.Errorf("parameter '%s' maps to an empty command", param)
		}
		mapping[cnst.ParameterAddressPrefix+param] = command
	}
	return mapping, nil
}

// ImportMapping merges the mapping file at path into the store's
// command_mapping and saves the store. It returns the number of imported entries.
func ImportMapping(store *Store, path string) (int, error) {
	imported, err := LoadMappingFile(path)
	if err != nil {
		return 0, err
	}

	mapping := store.CommandMapping()
	for address, command := range imported {
		mapping[address] = command
	}
	if err := store.Set([]string{"command_mapping"}, mapping); err != nil {
		return 0, fmt.Errorf("failed to save command mapping: %w", err)
	}
	return len(imported), nil
}
