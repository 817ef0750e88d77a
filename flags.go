package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alc6/sqlsnap/config"
)

// connFlags binds one connection's flags. A profile from the config file
// takes precedence; an explicit --schema still overrides it.
type connFlags struct {
	label          string
	profile        string
	conn           config.Profile
	passwordPrompt bool
}

func (c *connFlags) register(cmd *cobra.Command, prefix, label string) {
	c.label = label
	name := func(n string) string {
		if prefix == "" {
			return n
		}
		return prefix + "-" + n
	}

	f := cmd.Flags()
	f.StringVar(&c.profile, name("profile"), "", label+" profile name from the config file")
	f.StringVar(&c.conn.Engine, name("engine"), "", label+" engine: postgres, oracle or mysql")
	f.StringVar(&c.conn.Host, name("host"), "localhost", label+" host")
	f.IntVar(&c.conn.Port, name("port"), 0, label+" port (engine default when 0)")
	f.StringVar(&c.conn.Database, name("database"), "", label+" database, or service name for oracle")
	f.StringVar(&c.conn.User, name("user"), "", label+" user")
	f.StringVar(&c.conn.Password, name("password"), "", label+" password")
	f.StringVar(&c.conn.Schema, name("schema"), "", label+" schema (postgres), owner (oracle) or database (mysql)")
	f.BoolVar(&c.passwordPrompt, name("password-prompt"), false, "prompt for the "+label+" password")
}

func (c *connFlags) resolve(configPath string) (config.Target, error) {
	var (
		target config.Target
		err    error
	)

	if c.profile != "" {
		file, loadErr := loadConfig(configPath, true)
		if loadErr != nil {
			return config.Target{}, loadErr
		}
		target, err = file.Target(c.profile)
		if err == nil && c.conn.Schema != "" {
			target.Config.Schema = c.conn.Schema
		}
	} else {
		target, err = c.conn.Resolve()
	}
	if err != nil {
		return config.Target{}, fmt.Errorf("invalid %s connection: %w", c.label, err)
	}

	if c.passwordPrompt {
		password, err := promptPassword(fmt.Sprintf("%s password for %s: ", c.label, target.Config))
		if err != nil {
			return config.Target{}, err
		}
		target.Config.Password = password
	}
	return target, nil
}

// loadConfig reads the config file. Without an explicit path it falls back
// to SQLSNAP_CONFIG, then to sqlsnap.yaml, and returns nil when that file
// does not exist unless required is set.
func loadConfig(path string, required bool) (*config.File, error) {
	explicit := path != ""
	if !explicit {
		path = config.GetEnvOrDefault("SQLSNAP_CONFIG", config.DefaultFile)
	}

	file, err := config.Load(path)
	if err != nil {
		if !explicit && !required && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return file, nil
}

func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password prompt requires a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
