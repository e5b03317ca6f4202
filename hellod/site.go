package hellod

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/advdv/bphase"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// ErrEmptySite is returned when a reloaded site file holds no document. A file caught halfway through being
// rewritten looks like that.
var ErrEmptySite = errors.New("site file is empty")

// ReloadSite is [LoadSite] for a running server: an empty file is rejected with [ErrEmptySite] instead of
// replacing the site with an empty server scope.
func ReloadSite(path string) (bphase.Block, error) {
	b, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return bphase.Block{}, errors.Wrap(err, "read site file")
	}

	if len(bytes.TrimSpace(b)) == 0 {
		return bphase.Block{}, errors.Wrapf(ErrEmptySite, "site file %s", path)
	}

	site, err := ParseSite(b)
	if err != nil {
		return bphase.Block{}, errors.Wrapf(err, "site file %s", path)
	}

	return site, nil
}

// LoadSite reads the location tree from the YAML site file at path.
func LoadSite(path string) (bphase.Block, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return bphase.Block{}, errors.New("site file path is empty")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return bphase.Block{}, errors.Wrap(err, "read site file")
	}

	site, err := ParseSite(b)
	if err != nil {
		return bphase.Block{}, errors.Wrapf(err, "site file %s", path)
	}

	return site, nil
}

// ParseSite decodes a site document. Unknown keys are rejected and an empty document is an empty server
// scope.
//
//	location: /
//	directives:
//	  - [hello_world_text, "root"]
//	locations:
//	  - location: /hello
//	    directives:
//	      - [hello_world]
func ParseSite(b []byte) (bphase.Block, error) {
	var site bphase.Block

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&site); err != nil && !errors.Is(err, io.EOF) {
		return bphase.Block{}, errors.Wrap(err, "decode site")
	}

	return site, nil
}
