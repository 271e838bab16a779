package schema

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Source is one bundled model description.
type Source struct {
	Name string // File name reported in positions
	Data []byte
}

// CompileString compiles a single CUE source.
func CompileString(src string) (*Registry, error) {
	return CompileSources(Source{Name: "model.cue", Data: []byte(src)})
}

// CompileSources unifies every source into one model and compiles it.
func CompileSources(sources ...Source) (*Registry, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no model sources")
	}
	ctx := cuecontext.New()
	merged := ctx.CompileString("{}")
	for _, src := range sources {
		v := ctx.CompileBytes(src.Data, cue.Filename(src.Name))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		merged = merged.Unify(v)
	}
	if err := merged.Validate(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(merged)
}

// LoadFS reads every .cue file under root in fsys and compiles the merged
// model. It is meant for models bundled with go:embed.
func LoadFS(fsys fs.FS, root string) (*Registry, error) {
	var sources []Source
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".cue" {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		sources = append(sources, Source{Name: path, Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan model sources: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", root)
	}
	return CompileSources(sources...)
}

// LoadDirs loads the CUE package in each directory and unifies them into
// one model. Directories are loaded with cue/load so imports and package
// clauses work as they do for the cue tool.
func LoadDirs(dirs ...string) (*Registry, error) {
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no model directories")
	}
	ctx := cuecontext.New()
	merged := ctx.CompileString("{}")
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("model directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("not a directory: %s", dir)
		}

		instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
		if len(instances) == 0 {
			return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
		}
		inst := instances[0]
		if inst.Err != nil {
			return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
		}

		value := ctx.BuildInstance(inst)
		if err := value.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		merged = merged.Unify(value)
	}
	if err := merged.Validate(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(merged)
}
