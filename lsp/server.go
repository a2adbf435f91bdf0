// Package lsp is a language server that parses the documents of a
// backscan project and publishes parse errors as diagnostics.
package lsp

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/dhamidi/backscan/grammar"
	"github.com/dhamidi/backscan/pda"
	"github.com/dhamidi/backscan/project"
	"github.com/dhamidi/backscan/stream"
	"github.com/dhamidi/backscan/tree"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"
)

const (
	lsName = "backscan"
	// cachedLanguages bounds the compiled grammars kept in memory.
	cachedLanguages = 16
)

var log = commonlog.GetLogger("backscan.lsp")

type Server struct {
	handler protocol.Handler
	server  *server.Server
	version string

	// mu serializes parses; sessions are single-threaded.
	mu        sync.Mutex
	project   *project.Project
	languages *lru.ARCCache
}

// languageKey identifies a compiled grammar. A changed grammar file gets a
// new key.
type languageKey struct {
	name    string
	path    string
	modTime time.Time
}

func NewServer(version string) *Server {
	ls := &Server{version: version}
	ls.languages, _ = lru.NewARC(cachedLanguages)

	ls.handler = protocol.Handler{
		Initialize:            ls.initialize,
		Initialized:           ls.initialized,
		Shutdown:              ls.shutdown,
		SetTrace:              ls.setTrace,
		TextDocumentDidOpen:   ls.textDocumentDidOpen,
		TextDocumentDidChange: ls.textDocumentDidChange,
		TextDocumentDidClose:  ls.textDocumentDidClose,
		TextDocumentDidSave:   ls.textDocumentDidSave,
	}

	ls.server = server.NewServer(&ls.handler, lsName, false)

	return ls
}

func (ls *Server) RunStdio() error {
	return ls.server.RunStdio()
}

// Load reads the project containing rootDir.
func (ls *Server) Load(rootDir string) error {
	p, err := project.LoadFrom(rootDir)
	if err != nil {
		return err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.project = p
	ls.languages.Purge()
	return nil
}

// Diagnose parses content as the file at path. It returns nil when no
// language of the project handles the file.
func (ls *Server) Diagnose(path string, content []byte) []protocol.Diagnostic {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.project == nil {
		return nil
	}
	l := ls.project.ForFile(path)
	if l == nil {
		return nil
	}
	diags := []protocol.Diagnostic{}
	lang, err := ls.language(l)
	if err != nil {
		return append(diags, diagnostic(protocol.Position{}, "grammar "+l.Grammar+": "+err.Error()))
	}

	store := tree.NewStore()
	root, err := pda.Parse(context.Background(), lang, store, stream.NewText(path, content), pda.Options{})
	if err == nil {
		store.Downref(root)
		return diags
	}
	var pe *pda.ParseError
	if !errors.As(err, &pe) {
		return append(diags, diagnostic(protocol.Position{}, err.Error()))
	}
	pos := protocol.Position{
		Line:      protocol.UInteger(pe.Loc.Line - 1),
		Character: character(content, pe.Loc.Byte),
	}
	return append(diags, diagnostic(pos, pe.Error()))
}

// character converts a byte offset of content into the UTF-16 offset on
// its line that LSP positions use.
func character(content []byte, offset int) protocol.UInteger {
	offset = min(offset, len(content))
	start := bytes.LastIndexByte(content[:offset], '\n') + 1
	n := 0
	for _, r := range string(content[start:offset]) {
		n += utf16.RuneLen(r)
	}
	return protocol.UInteger(n)
}

// language returns the compiled grammar of l, building it when the
// grammar file changed since it was last compiled.
func (ls *Server) language(l *project.Language) (*grammar.Language, error) {
	path := l.GrammarPath()
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	key := languageKey{name: l.Name, path: path, modTime: info.ModTime()}
	if v, ok := ls.languages.Get(key); ok {
		return v.(*grammar.Language), nil
	}
	lang, err := l.Build()
	if err != nil {
		return nil, err
	}
	log.Infof("compiled %s from %s: %d states", l.Name, path, lang.NumStates())
	ls.languages.Add(key, lang)
	return lang, nil
}

func diagnostic(pos protocol.Position, msg string) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	source := lsName
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: pos, End: protocol.Position{Line: pos.Line, Character: pos.Character + 1}},
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}
}

func (ls *Server) publish(ctx *glsp.Context, uri protocol.DocumentUri, content []byte) {
	path, err := uriToPath(uri)
	if err != nil {
		return
	}
	diags := ls.Diagnose(path, content)
	if diags == nil {
		return
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}

func (ls *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	rootDir := "."
	if params.RootPath != nil && *params.RootPath != "" {
		rootDir = *params.RootPath
	} else if params.RootURI != nil && *params.RootURI != "" {
		if path, err := uriToPath(*params.RootURI); err == nil {
			rootDir = path
		}
	}
	if err := ls.Load(rootDir); err != nil {
		log.Warningf("no project: %s", err)
	}

	capabilities := ls.handler.CreateServerCapabilities()

	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    syncKind(protocol.TextDocumentSyncKindFull),
		Save: &protocol.SaveOptions{
			IncludeText: boolPtr(true),
		},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &ls.version,
		},
	}, nil
}

func (ls *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (ls *Server) shutdown(ctx *glsp.Context) error {
	return nil
}

func (ls *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (ls *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	ls.publish(ctx, params.TextDocument.URI, []byte(params.TextDocument.Text))
	return nil
}

func (ls *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) > 0 {
		change := params.ContentChanges[len(params.ContentChanges)-1]
		if textChange, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
			ls.publish(ctx, params.TextDocument.URI, []byte(textChange.Text))
		}
	}
	return nil
}

func (ls *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (ls *Server) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	if params.Text != nil {
		ls.publish(ctx, params.TextDocument.URI, []byte(*params.Text))
		return nil
	}
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	ls.publish(ctx, params.TextDocument.URI, content)
	return nil
}

func uriToPath(uri string) (string, error) {
	if strings.HasPrefix(uri, "file://") {
		parsed, err := url.Parse(uri)
		if err != nil {
			return "", err
		}
		return filepath.Clean(parsed.Path), nil
	}
	return uri, nil
}

func boolPtr(b bool) *bool {
	return &b
}

func syncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
