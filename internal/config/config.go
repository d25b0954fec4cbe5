// Package config loads the installer's host configuration file: distro
// branding, allowed installation types, bootc defaults and the post-install
// module list offered by the front-end. The file itself is an external
// collaborator's interface (the GUI/CLI constructs the playbook from it) —
// this package only loads and validates its shape.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/FyraLabs/readymade/internal/errs"
)

const (
	// ConfigEnv overrides the config file path.
	ConfigEnv = "READYMADE_CONFIG"
	// DefaultPath is used when ConfigEnv is unset.
	DefaultPath = "/etc/readymade.toml"
)

type Distro struct {
	Name string `toml:"name"`
	Icon string `toml:"icon"`
}

type Install struct {
	AllowedInstallTypes   []string `toml:"allowed_installtypes"`
	CopyMode              string   `toml:"copy_mode"`
	BootcImgref           string   `toml:"bootc_imgref,omitempty"`
	BootcTargetImgref     string   `toml:"bootc_target_imgref,omitempty"`
	BootcEnforceSigpolicy bool     `toml:"bootc_enforce_sigpolicy"`
	BootcKargs            []string `toml:"bootc_kargs,omitempty"`
	BootcArgs             []string `toml:"bootc_args,omitempty"`
}

type PostInstallEntry struct {
	Module string `toml:"module"`
}

type Bento struct {
	Title string `toml:"title"`
	Desc  string `toml:"desc"`
	Link  string `toml:"link"`
	Icon  string `toml:"icon"`
}

// ReadymadeConfig is the top-level shape of /etc/readymade.toml.
type ReadymadeConfig struct {
	Distro      Distro             `toml:"distro"`
	Install     Install            `toml:"install"`
	PostInstall []PostInstallEntry `toml:"postinstall"`
	NoLangpage  bool               `toml:"no_langpage"`
	Bento       []Bento            `toml:"bento"`
}

// Path resolves the config file location: READYMADE_CONFIG, else
// DefaultPath.
func Path() string {
	if p := os.Getenv(ConfigEnv); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads and parses the config file at Path().
func Load() (*ReadymadeConfig, error) {
	return LoadFrom(Path())
}

// LoadFrom reads and parses the config file at the given path.
func LoadFrom(path string) (*ReadymadeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IO, err, "reading config %s", path)
	}
	var cfg ReadymadeConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Wrap(errs.ConfigShape, err, "parsing config %s", path)
	}
	if len(cfg.Bento) > 3 {
		return nil, errs.New(errs.ConfigShape, "config %s declares %d bento entries, at most 3 are supported", path, len(cfg.Bento))
	}
	return &cfg, nil
}
