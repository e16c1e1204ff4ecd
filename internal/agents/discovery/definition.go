package discovery

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Package is a parsed and validated agent package.
type Package struct {
	Dir        string // directory, relative to the filesystem root used for discovery
	Module     string // dotted path below the discovery root
	Key        string // leaf directory name
	Meta       core.PackageMeta
	Definition core.Definition
}

// LoadPackage reads the marker and definition files in dir.
func LoadPackage(fsys afero.Fs, dir, module string) (*Package, error) {
	pkg := &Package{Dir: dir, Module: module, Key: path.Base(filepath.ToSlash(dir))}

	raw, err := afero.ReadFile(fsys, filepath.Join(dir, MarkerFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", MarkerFile, err)
	}
	if err := decodeStrict(raw, &pkg.Meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", MarkerFile, err)
	}

	raw, err = afero.ReadFile(fsys, filepath.Join(dir, DefinitionFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", DefinitionFile, err)
	}
	if err := decodeStrict(raw, &pkg.Definition); err != nil {
		return nil, fmt.Errorf("parse %s: %w", DefinitionFile, err)
	}
	if err := checkDefinition(&pkg.Definition); err != nil {
		return nil, fmt.Errorf("%s: %w", DefinitionFile, err)
	}

	// Knowledge paths are relative to the package directory.
	for i := range pkg.Definition.Agents {
		k := &pkg.Definition.Agents[i].Knowledge
		for j, p := range k.Paths {
			if !filepath.IsAbs(p) {
				k.Paths[j] = filepath.Join(dir, p)
			}
		}
	}
	return pkg, nil
}

// decodeStrict decodes YAML, rejecting unknown fields. Empty input leaves v
// at its zero value.
func decodeStrict(raw []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// checkDefinition validates field shapes and cross references.
func checkDefinition(def *core.Definition) error {
	if err := validate.Struct(def); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed %q check", fe.Namespace(), fe.Tag())
		}
		return err
	}

	agents := make(map[string]bool, len(def.Agents))
	for _, a := range def.Agents {
		if a.Name == "" {
			continue
		}
		if agents[a.Name] {
			return fmt.Errorf("agent %q declared twice", a.Name)
		}
		agents[a.Name] = true
	}
	teams := make(map[string]bool, len(def.Teams))
	for _, t := range def.Teams {
		if teams[t.Name] || agents[t.Name] {
			return fmt.Errorf("name %q declared twice", t.Name)
		}
		teams[t.Name] = true
		for _, m := range t.Members {
			if !agents[m] {
				return fmt.Errorf("team %q: unknown member %q", t.Name, m)
			}
		}
	}
	if def.Export != "" && !agents[def.Export] && !teams[def.Export] {
		return fmt.Errorf("export %q names no agent or team", def.Export)
	}
	return nil
}

// candidate is an agent or team a package could expose.
type candidate struct {
	name  string
	team  *core.TeamSpec
	agent *core.AgentSpec
}

// candidates lists declared teams, then agents no team references, in file
// order.
func candidates(def *core.Definition) []candidate {
	referenced := make(map[string]bool)
	var out []candidate
	for i := range def.Teams {
		t := &def.Teams[i]
		for _, m := range t.Members {
			referenced[m] = true
		}
		out = append(out, candidate{name: t.Name, team: t})
	}
	for i := range def.Agents {
		a := &def.Agents[i]
		if a.Name != "" && referenced[a.Name] {
			continue
		}
		out = append(out, candidate{name: a.Name, agent: a})
	}
	return out
}

func (p *Package) agentSpec(name string) (core.AgentSpec, bool) {
	for _, a := range p.Definition.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return core.AgentSpec{}, false
}

// moduleName joins the path of dir below root with dots.
func moduleName(root, dir string) (string, error) {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", "."), nil
}
