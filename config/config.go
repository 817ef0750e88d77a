// Package config loads named connection profiles from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "sqlsnap.yaml"

// Profile is one connection as written in the config file or on the
// command line.
type Profile struct {
	Engine   string            `yaml:"engine"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port,omitempty"`
	Database string            `yaml:"database"`
	User     string            `yaml:"user"`
	Password string            `yaml:"password,omitempty"`
	Schema   string            `yaml:"schema,omitempty"`
	Params   map[string]string `yaml:"params,omitempty"`
}

// Backup holds defaults for backup runs.
type Backup struct {
	OutputDir string   `yaml:"output_dir,omitempty"`
	PageSize  int      `yaml:"page_size,omitempty"`
	Tables    []string `yaml:"tables,omitempty"`
}

type File struct {
	Profiles map[string]Profile `yaml:"profiles"`
	Backup   Backup             `yaml:"backup,omitempty"`
}

// Target is a validated profile ready for the engine factory.
type Target struct {
	Engine engine.Type
	Config schema.ConnectionConfig
}

// Load reads a config file, expands ${VAR} references in every value and
// validates the profiles.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	f.expand()

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &f, nil
}

func (f *File) expand() {
	for name, p := range f.Profiles {
		f.Profiles[name] = p.expand()
	}
	f.Backup.OutputDir = Expand(f.Backup.OutputDir)
}

// Validate reports every problem in the file at once.
func (f *File) Validate() error {
	if len(f.Profiles) == 0 {
		return errors.New("no profiles defined")
	}

	var problems []string
	for _, name := range f.ProfileNames() {
		if err := f.Profiles[name].validate(); err != nil {
			problems = append(problems, fmt.Sprintf("profiles.%s: %v", name, err))
		}
	}
	if f.Backup.PageSize < 0 {
		problems = append(problems, "backup.page_size must not be negative")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ProfileNames lists profiles in name order.
func (f *File) ProfileNames() []string {
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Target resolves a named profile, applying its password override from the
// environment.
func (f *File) Target(name string) (Target, error) {
	p, ok := f.Profiles[name]
	if !ok {
		return Target{}, fmt.Errorf("profile %q not found (available: %s)", name, strings.Join(f.ProfileNames(), ", "))
	}
	if pw, ok := os.LookupEnv(PasswordVar(name)); ok {
		p.Password = pw
	}
	return p.Resolve()
}

func (p Profile) expand() Profile {
	p.Engine = Expand(p.Engine)
	p.Host = Expand(p.Host)
	p.Database = Expand(p.Database)
	p.User = Expand(p.User)
	p.Password = Expand(p.Password)
	p.Schema = Expand(p.Schema)
	if len(p.Params) > 0 {
		params := make(map[string]string, len(p.Params))
		for k, v := range p.Params {
			params[k] = Expand(v)
		}
		p.Params = params
	}
	return p
}

func (p Profile) validate() error {
	var problems []string

	if strings.TrimSpace(p.Engine) == "" {
		problems = append(problems, "engine is required")
	} else if _, err := engine.ParseType(p.Engine); err != nil {
		problems = append(problems, err.Error())
	}
	if strings.TrimSpace(p.Host) == "" {
		problems = append(problems, "host is required")
	}
	if strings.TrimSpace(p.Database) == "" {
		problems = append(problems, "database is required")
	}
	if strings.TrimSpace(p.User) == "" {
		problems = append(problems, "user is required")
	}
	if p.Port < 0 || p.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", p.Port))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, ", "))
	}
	return nil
}

// Resolve validates the profile and fills the engine's default port.
func (p Profile) Resolve() (Target, error) {
	if err := p.validate(); err != nil {
		return Target{}, err
	}

	t, _ := engine.ParseType(p.Engine)
	port := p.Port
	if port == 0 {
		port = engine.DefaultPort(t)
	}

	return Target{
		Engine: t,
		Config: schema.ConnectionConfig{
			Host:     strings.TrimSpace(p.Host),
			Port:     port,
			Database: strings.TrimSpace(p.Database),
			User:     strings.TrimSpace(p.User),
			Password: p.Password,
			Schema:   strings.TrimSpace(p.Schema),
			Params:   p.Params,
		},
	}, nil
}
