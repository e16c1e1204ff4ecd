/*
Package discovery builds registry entries from agent packages on disk.

An agent package is a directory below the agents root that directly contains
both a package marker (package.yaml) and a definition file (agent.yaml). The
leaf directory name becomes the registry key and the dotted relative path the
module name. Discovery is fail-soft: a package that cannot be loaded or built
is recorded in the Report and skipped, and the pass always completes.
*/
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/spf13/afero"
)

// Required file names of an agent package.
const (
	MarkerFile     = "package.yaml"
	DefinitionFile = "agent.yaml"
)

// Options configure a discovery pass.
type Options struct {
	Root    string
	Fs      afero.Fs // nil means the OS filesystem
	Builder core.AgentBuilder
	Logger  *slog.Logger
}

// Skip records a package that produced no registry entry.
type Skip struct {
	Path   string `json:"path"`
	Module string `json:"module"`
	Reason string `json:"reason"`
}

// Report summarizes a discovery pass.
type Report struct {
	Root        string
	RootMissing bool
	Added       []string // keys, in discovery order
	Skips       []Skip
}

// Discover builds a registry from the packages under opts.Root.
func Discover(ctx context.Context, opts Options) (*core.Registry, Report) {
	b := core.NewBuilder()
	rep := Into(ctx, b, opts)
	return b.Build(), rep
}

// Into adds the packages under opts.Root to b. Keys already present in b,
// such as builtins, win over discovered packages.
func Into(ctx context.Context, b *core.Builder, opts Options) Report {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	rep := Report{Root: opts.Root}

	if ok, err := afero.DirExists(fsys, opts.Root); err != nil || !ok {
		rep.RootMissing = true
		log.Warn("agents directory not found", "path", opts.Root)
		return rep
	}

	dirs, err := packageDirs(fsys, opts.Root)
	if err != nil {
		log.Warn("walk agents directory", "path", opts.Root, "error", err)
	}

	for _, dir := range dirs {
		if ctx.Err() != nil {
			log.Warn("discovery interrupted", "error", ctx.Err())
			break
		}
		module, err := moduleName(opts.Root, dir)
		if err != nil {
			module = dir
		}
		skip := func(reason string, err error) {
			if err != nil {
				reason = fmt.Sprintf("%s: %v", reason, err)
			}
			rep.Skips = append(rep.Skips, Skip{Path: dir, Module: module, Reason: reason})
			log.Warn("skipping agent package", "module", module, "path", dir, "reason", reason)
		}

		pkg, err := LoadPackage(fsys, dir, module)
		if err != nil {
			skip("load failed", err)
			continue
		}
		if b.Has(pkg.Key) {
			skip("duplicate key "+pkg.Key, nil)
			continue
		}
		agent, err := buildPackage(ctx, pkg, opts.Builder, log)
		if err != nil {
			skip("build failed", err)
			continue
		}

		d := core.Describe(pkg.Key, agent, module, pkg.Meta.Examples)
		if err := b.Add(d); err != nil {
			skip("rejected", err)
			continue
		}
		rep.Added = append(rep.Added, pkg.Key)
		log.Debug("registered agent package", "module", module, "key", pkg.Key, "agent", d.Name)
	}
	return rep
}

// packageDirs returns every eligible directory below root in lexical
// depth-first order. Ineligible directories are still descended into.
func packageDirs(fsys afero.Fs, root string) ([]string, error) {
	var dirs []string
	err := afero.Walk(fsys, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() || p == root {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		if isPackage(fsys, p) {
			dirs = append(dirs, p)
		}
		return nil
	})
	return dirs, err
}

func isPackage(fsys afero.Fs, dir string) bool {
	for _, name := range []string{MarkerFile, DefinitionFile} {
		info, err := fsys.Stat(filepath.Join(dir, name))
		if err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

var errNoCandidate = errors.New("definition declares no agent or team")

// buildPackage constructs the single agent a package exposes: the exported
// name when set, else the first candidate.
func buildPackage(ctx context.Context, pkg *Package, ab core.AgentBuilder, log *slog.Logger) (core.Agent, error) {
	if ab == nil {
		return nil, errors.New("no agent builder configured")
	}
	cands := candidates(&pkg.Definition)
	if len(cands) == 0 {
		return nil, errNoCandidate
	}

	chosen := cands[0]
	if exp := pkg.Definition.Export; exp != "" {
		for _, c := range cands {
			if c.name == exp {
				chosen = c
				break
			}
		}
		if chosen.name != exp {
			return nil, fmt.Errorf("export %q is a team member, not a top-level agent", exp)
		}
	} else if len(cands) > 1 {
		log.Warn("package declares several agents, using the first",
			"module", pkg.Module, "agent", chosen.name, "candidates", len(cands))
	}

	if chosen.agent != nil {
		return ab.BuildAgent(ctx, *chosen.agent)
	}

	members := make([]core.Agent, 0, len(chosen.team.Members))
	for _, name := range chosen.team.Members {
		spec, _ := pkg.agentSpec(name)
		a, err := ab.BuildAgent(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", name, err)
		}
		members = append(members, a)
	}
	return ab.BuildTeam(ctx, *chosen.team, members)
}
