package cadence

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/cadence/pkg/adapters/starlark"
	"github.com/aretw0/cadence/pkg/adapters/yaml"
	"github.com/aretw0/cadence/pkg/procedure"
)

// LoadDir compiles every procedure file in dir: *.yaml and *.yml documents and *.star scripts.
// Other files are ignored. Files are loaded in name order.
func LoadDir(dir string, opts ...yaml.Option) ([]*procedure.State, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read procedures dir: %w", err)
	}
	loader := yaml.NewLoader(opts...)

	var states []*procedure.State
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		var (
			st  *procedure.State
			err error
		)
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			st, err = loader.LoadFile(path)
		case ".star":
			st, err = starlark.LoadFile(path)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}
