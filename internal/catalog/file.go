package catalog

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a catalog override from a YAML file. The file replaces the
// built-in catalog wholesale; partial overrides are not supported.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}

	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrapf(err, "catalog: parse %s", path)
	}

	if err := Validate(entries); err != nil {
		return nil, err
	}
	return entries, nil
}
