package docs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/docdrift/docdrift/internal/models"
)

// catalogFile is the on-disk service-to-docs mapping:
//
//	workspaces:
//	  - id: acme
//	    services:
//	      checkout:
//	        - system: confluence
//	          space: ENG
//	          id: "12345"
//	    shared:
//	      - system: github_readme
//	        repo: acme/runbooks
//	        path: README.md
type catalogFile struct {
	Workspaces []struct {
		ID       string                     `yaml:"id"`
		Services map[string][]models.DocRef `yaml:"services"`
		Shared   []models.DocRef            `yaml:"shared"`
	} `yaml:"workspaces"`
}

// LoadCatalog reads the mapping file into a StaticCatalog. A missing path
// returns an empty catalog; resolution will then report none for everything.
func LoadCatalog(path string) (*StaticCatalog, error) {
	c := NewStaticCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	for _, ws := range f.Workspaces {
		for service, refs := range ws.Services {
			c.Add(ws.ID, service, refs...)
		}
		if len(ws.Shared) > 0 {
			c.Add(ws.ID, "", ws.Shared...)
		}
	}
	return c, nil
}
