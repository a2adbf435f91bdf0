// Package project loads backscan.toml, the file that names the grammars
// of a project and the source files each one parses.
package project

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/dhamidi/backscan/ebnflex"
	"github.com/dhamidi/backscan/grammar"
	"github.com/naoina/toml"
	"github.com/tliron/commonlog"
)

// FileName is the name of the project file.
const FileName = "backscan.toml"

var log = commonlog.GetLogger("backscan.project")

// TOML keys use the Go field names.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.Name())
	},
}

// Project is a directory holding a backscan.toml.
type Project struct {
	RootDir   string
	File      string
	Languages []*Language
}

// Language is one [[Language]] table of the project file.
type Language struct {
	Name string
	// Grammar is the EBNF file, relative to the project root.
	Grammar string
	Start   string
	// Ignore, Trailing and Bind name tokens of the grammar; see
	// grammar.Config.
	Ignore   []string
	Trailing []string
	Bind     []string
	// Extensions select the source files parsed with the language.
	Extensions []string
	// SrcDir is searched for source files. It defaults to the root.
	SrcDir string

	project *Project
}

type projectFile struct {
	Language []*Language
}

// Load finds the project containing the current directory.
func Load() (*Project, error) {
	return LoadFrom(".")
}

// LoadFrom finds the project file in dir or the nearest directory above
// it and decodes it.
func LoadFrom(dir string) (*Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	for {
		file := filepath.Join(abs, FileName)
		if _, err := os.Stat(file); err == nil {
			return LoadFile(file)
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return nil, fmt.Errorf("could not detect project: no %s in %s or above", FileName, dir)
		}
		abs = parent
	}
}

// LoadFile decodes a project file. Paths in it are relative to its
// directory.
func LoadFile(file string) (*Project, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pf projectFile
	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&pf)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	if err != nil {
		return nil, err
	}

	p := &Project{RootDir: filepath.Dir(file), File: file}
	seen := map[string]bool{}
	for _, l := range pf.Language {
		if l.Name == "" {
			return nil, fmt.Errorf("%s: language without a Name", file)
		}
		if seen[l.Name] {
			return nil, fmt.Errorf("%s: language %q defined twice", file, l.Name)
		}
		seen[l.Name] = true
		if l.Grammar == "" || l.Start == "" {
			return nil, fmt.Errorf("%s: language %q needs Grammar and Start", file, l.Name)
		}
		if l.SrcDir == "" {
			l.SrcDir = "."
		}
		l.project = p
		p.Languages = append(p.Languages, l)
	}
	sort.Slice(p.Languages, func(i, j int) bool { return p.Languages[i].Name < p.Languages[j].Name })
	log.Debugf("loaded %s: %d languages", file, len(p.Languages))
	return p, nil
}

// Language returns the language with the given name, or nil if not found.
func (p *Project) Language(name string) *Language {
	for _, l := range p.Languages {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// ForFile returns the language whose extensions match path, or nil.
func (p *Project) ForFile(path string) *Language {
	ext := filepath.Ext(path)
	for _, l := range p.Languages {
		for _, e := range l.Extensions {
			if e == ext {
				return l
			}
		}
	}
	return nil
}

// GrammarPath is the absolute path of the grammar file.
func (l *Language) GrammarPath() string {
	return l.path(l.Grammar)
}

func (l *Language) path(rel string) string {
	if filepath.IsAbs(rel) || l.project == nil {
		return rel
	}
	return filepath.Join(l.project.RootDir, rel)
}

// Project is the project the language belongs to.
func (l *Language) Project() *Project { return l.project }

// Config is the grammar configuration of the language.
func (l *Language) Config() grammar.Config {
	return grammar.Config{
		Start:    l.Start,
		Ignore:   l.Ignore,
		Trailing: l.Trailing,
		Bind:     l.Bind,
	}
}

// Build loads and compiles the grammar.
func (l *Language) Build() (*grammar.Language, error) {
	g, err := ebnflex.LoadGrammar(l.GrammarPath())
	if err != nil {
		return nil, err
	}
	lang, err := grammar.Build(g, l.Config())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Grammar, err)
	}
	return lang, nil
}

// SourceFiles returns the files under SrcDir with one of the language's
// extensions, recursively, in lexical order.
func (l *Language) SourceFiles() ([]string, error) {
	var files []string
	root := l.path(l.SrcDir)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		for _, e := range l.Extensions {
			if strings.HasSuffix(path, e) {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan source files in %s: %w", root, err)
	}
	return files, nil
}
