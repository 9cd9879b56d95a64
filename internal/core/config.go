package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/julien-sobczak/nt-anki/internal/anki"
	"github.com/julien-sobczak/nt-anki/internal/format"
	"github.com/julien-sobczak/nt-anki/internal/scanner"
	"github.com/julien-sobczak/nt-anki/pkg/resync"
)

// How many parent directories to traverse before considering a directory as not a vault
const maxDepth = 10

// Default .ntanki/config content
const DefaultConfig = `
[core]
extensions = ["md", "markdown"]
default_deck = "Default"

[anki]
endpoint = "http://127.0.0.1:8765"

[[notetype]]
name = "Basic"
fields = ["Front", "Back"]

[[notetype]]
name = "Basic (and reversed card)"
fields = ["Front", "Back"]

[[notetype]]
name = "Cloze"
fields = ["Text", "Back Extra"]
cloze = true
`

// Default .ntankiignore content
const DefaultIgnore = `
templates/
README.md
`

var (
	// Lazy-load configuration and ensure a single read
	configOnce      resync.Once
	configSingleton *Config
)

// Note: Fields must be public for toml package to unmarshall
type ConfigFile struct {
	Core       ConfigCore
	Anki       ConfigAnki
	Scanner    ConfigScanner
	Format     ConfigFormat
	NoteTypes  []ConfigNoteType  `toml:"notetype"`
	RegexNotes []ConfigRegexNote `toml:"regexnote"`
}

type ConfigCore struct {
	Extensions  []string
	DefaultDeck string `toml:"default_deck"`
}

type ConfigAnki struct {
	Endpoint string
}

type ConfigScanner struct {
	FrontmatterID   bool `toml:"frontmatter_id"`
	GateRegexOnTags bool `toml:"gate_regex_on_tags"`
	AddContext      bool `toml:"add_context"`
	AddAliases      bool `toml:"add_aliases"`
	Syntax          ConfigSyntax
}

type ConfigSyntax struct {
	BlockStart   string `toml:"block_start"`
	BlockEnd     string `toml:"block_end"`
	InlineStart  string `toml:"inline_start"`
	InlineEnd    string `toml:"inline_end"`
	DeleteMarker string `toml:"delete_marker"`
	TargetDeck   string `toml:"target_deck"`
	FileTags     string `toml:"file_tags"`
}

type ConfigFormat struct {
	CurlyCloze        bool `toml:"curly_cloze"`
	HighlightsToCloze bool `toml:"highlights_to_cloze"`
	MarkdownToHTML    bool `toml:"markdown_to_html"`
}

type ConfigNoteType struct {
	Name   string
	Fields []string
	Cloze  bool
}

type ConfigRegexNote struct {
	Name    string
	Pattern string
	Tag     string
}

// SupportExtension checks if the given file extension must be considered.
func (f *ConfigFile) SupportExtension(path string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".") // ".md" => "md"
	for _, extension := range f.Core.Extensions {
		if strings.EqualFold(extension, ext) { // case-insensitive
			return true
		}
	}
	return false
}

type IgnoreFile struct {
	Entries []string
}

// MustExcludeFile checks a path against the ignore entries.
// Directory entries end with a / and exclude everything under them.
func (i *IgnoreFile) MustExcludeFile(path string, dir bool) bool {
	path = strings.Trim(path, "/")
	if dir {
		path += "/"
	}
	for _, entry := range i.Entries {
		if strings.HasSuffix(entry, "/") {
			if strings.HasPrefix(path, entry) || path == strings.TrimSuffix(entry, "/")+"/" {
				return true
			}
			continue
		}
		if matched, _ := filepath.Match(entry, path); matched {
			return true
		}
		if path == entry {
			return true
		}
	}
	return false
}

/* Main config */

type Config struct {
	// Absolute top directory containing the .ntanki sub-directory
	RootDirectory string

	// .ntanki/config content
	ConfigFile ConfigFile

	// .ntankiignore content
	IgnoreFile IgnoreFile

	// Toggle this flag to skip every side-effect
	DryRun bool
}

func CurrentConfig() *Config {
	configOnce.Do(func() {
		var err error
		configSingleton, err = ReadConfigFromDirectory(currentHome())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to read current configuration: %v\n", err)
			os.Exit(1)
		}
		if configSingleton == nil {
			fmt.Fprintln(os.Stderr, "fatal: not a nt-anki vault (or any of the parent directories): .ntanki")
			os.Exit(1)
		}
	})
	return configSingleton
}

func currentHome() string {
	// Supports overriding the root directory mainly for testing purposes. Ex:
	//
	//   $ env NT_ANKI_HOME=./examples go run main.go sync
	if path, ok := os.LookupEnv("NT_ANKI_HOME"); ok {
		abspath, err := filepath.Abs(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Failed to evaluate $NT_ANKI_HOME")
			os.Exit(1)
		}
		if _, err := os.Stat(abspath); os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "Path in $NT_ANKI_HOME undefined")
			os.Exit(1)
		}
		return abspath
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to determine current directory: %v\n", err)
		os.Exit(1)
	}
	return cwd
}

// ReadConfigFromDirectory loads the configuration by searching for a .ntanki
// directory in the given directory or any parent directories.
func ReadConfigFromDirectory(path string) (*Config, error) {
	rootPath := path
	i := 0 // Safeguard to not go up too far
	for {
		i++
		if i > maxDepth {
			return nil, nil
		}
		markerPath := filepath.Join(rootPath, ".ntanki")
		_, err := os.Stat(markerPath)
		if os.IsNotExist(err) {
			if len(strings.Split(rootPath, string(os.PathSeparator))) <= 2 {
				// Root directory detected
				return nil, nil
			}
			rootPath = filepath.Clean(filepath.Join(rootPath, ".."))
		} else if err != nil {
			return nil, fmt.Errorf("error while searching for configuration directory: %v", err)
		} else {
			break
		}
	}

	// Check for .ntanki/config
	configPath := filepath.Join(rootPath, ".ntanki", "config")
	var configFile *ConfigFile
	_, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		configFile, err = parseConfigFile(DefaultConfig)
		if err != nil {
			return nil, fmt.Errorf("default configuration is broken: %v", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check for .ntanki/config file: %v", err)
	} else {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read .ntanki/config file: %v", err)
		}
		configFile, err = parseConfigFile(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse .ntanki/config file: %v", err)
		}
	}

	// Check for .ntankiignore
	ignorePath := filepath.Join(rootPath, ".ntankiignore")
	var ignoreFile *IgnoreFile
	_, err = os.Stat(ignorePath)
	if os.IsNotExist(err) {
		ignoreFile = parseIgnoreFile(DefaultIgnore)
	} else if err != nil {
		return nil, fmt.Errorf("failed to check for .ntankiignore file: %v", err)
	} else {
		content, err := os.ReadFile(ignorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read .ntankiignore file: %v", err)
		}
		ignoreFile = parseIgnoreFile(string(content))
	}

	return &Config{
		RootDirectory: rootPath,
		ConfigFile:    *configFile,
		IgnoreFile:    *ignoreFile,
	}, nil
}

func parseConfigFile(content string) (*ConfigFile, error) {
	var result ConfigFile
	if err := toml.Unmarshal([]byte(content), &result); err != nil {
		return nil, err
	}
	if len(result.Core.Extensions) == 0 {
		result.Core.Extensions = []string{"md", "markdown"}
	}
	return &result, nil
}

func parseIgnoreFile(content string) *IgnoreFile {
	var result IgnoreFile
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		result.Entries = append(result.Entries, line)
	}
	return &result
}

// SetVerboseLevel overrides the default verbose level
func (c *Config) SetVerboseLevel(level VerboseLevel) *Config {
	CurrentLogger().SetVerboseLevel(level)
	return c
}

// AnkiEndpoint returns the AnkiConnect address to use.
func (c *Config) AnkiEndpoint() string {
	if c.ConfigFile.Anki.Endpoint != "" {
		return c.ConfigFile.Anki.Endpoint
	}
	return anki.DefaultEndpoint
}

// CacheFile returns the path of the sync cache.
func (c *Config) CacheFile() string {
	return filepath.Join(c.RootDirectory, ".ntanki", "cache")
}

// ScannerOptions converts the configuration into the options of a scan.
func (c *Config) ScannerOptions() *scanner.Options {
	noteTypes := make(map[string]scanner.NoteType)
	for _, noteType := range c.ConfigFile.NoteTypes {
		noteTypes[noteType.Name] = scanner.NoteType{
			Name:   noteType.Name,
			Fields: noteType.Fields,
			Cloze:  noteType.Cloze,
		}
	}

	var regexNotes []scanner.RegexNoteType
	for _, regexNote := range c.ConfigFile.RegexNotes {
		regexNotes = append(regexNotes, scanner.RegexNoteType{
			Name:        regexNote.Name,
			Pattern:     regexNote.Pattern,
			RequiredTag: regexNote.Tag,
		})
	}

	return &scanner.Options{
		NoteTypes:       noteTypes,
		RegexNoteTypes:  regexNotes,
		Syntax:          c.syntax(),
		FrontmatterID:   c.ConfigFile.Scanner.FrontmatterID,
		GateRegexOnTags: c.ConfigFile.Scanner.GateRegexOnTags,
		AddContext:      c.ConfigFile.Scanner.AddContext,
		AddAliases:      c.ConfigFile.Scanner.AddAliases,
		DefaultDeck:     c.ConfigFile.Core.DefaultDeck,
		Format: format.Options{
			CurlyCloze:        c.ConfigFile.Format.CurlyCloze,
			HighlightsToCloze: c.ConfigFile.Format.HighlightsToCloze,
			MarkdownToHTML:    c.ConfigFile.Format.MarkdownToHTML,
		},
	}
}

func (c *Config) syntax() scanner.Syntax {
	syntax := scanner.DefaultSyntax()
	custom := c.ConfigFile.Scanner.Syntax
	if custom.BlockStart != "" {
		syntax.BlockStart = custom.BlockStart
	}
	if custom.BlockEnd != "" {
		syntax.BlockEnd = custom.BlockEnd
	}
	if custom.InlineStart != "" {
		syntax.InlineStart = custom.InlineStart
	}
	if custom.InlineEnd != "" {
		syntax.InlineEnd = custom.InlineEnd
	}
	if custom.DeleteMarker != "" {
		syntax.DeleteMarker = custom.DeleteMarker
	}
	if custom.TargetDeck != "" {
		syntax.TargetDeckPrefix = custom.TargetDeck
	}
	if custom.FileTags != "" {
		syntax.FileTagsPrefix = custom.FileTags
	}
	return syntax
}
