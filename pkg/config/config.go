package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudify-cosmo/cfy-fetch/pkg/circleci"
	"github.com/iver-wharf/wharf-core/v2/pkg/config"
	"gopkg.in/typ.v4/slices"
	"gopkg.in/yaml.v3"
)

// Config holds all configurable settings for cfy-fetch.
//
// The config is read in the following order:
//
// 1. File: ~/.config/cloudify/cfy-fetch/cfy-fetch-config.yml
//
// 2. File: ./cfy-fetch-config.yml
//
// 3. File from environment variable: CFY_FETCH_CONFIG
//
// 4. Environment variables, prefixed with CFY_FETCH
//
// Each inner struct is represented as a deeper field in the different
// configurations. For YAML they represent deeper nested maps. For environment
// variables they are joined together by underscores.
//
// All environment variables must be uppercased, while YAML files are
// case-insensitive. Keeping camelCasing in YAML config files is recommended
// for consistency.
type Config struct {
	CircleCI CircleCIConfig
	Branches BranchesConfig
	Output   OutputConfig
	Requests RequestsConfig
}

// CircleCIConfig holds settings for talking to the CircleCI API.
type CircleCIConfig struct {
	// APIURL is the base URL of the CircleCI v1.1 API.
	APIURL string `yaml:"apiUrl"`

	// Token is the API token sent in the Circle-Token header. Public
	// projects can be read without one.
	//
	// Set via CFY_FETCH_CIRCLECI_TOKEN, or in a .env file.
	Token string `yaml:"token"`

	// VCSType is the version control provider of the projects, either
	// "github" or "bitbucket".
	VCSType string `yaml:"vcsType"`

	// Organization is the organization used for repositories that do not
	// name one themselves, neither in the request file's organization field
	// nor as an "org/name" key.
	Organization string `yaml:"organization"`

	// PageSize is the number of builds requested per history page.
	PageSize int `yaml:"pageSize"`

	// Timeout bounds every single HTTP request, including artifact
	// downloads.
	Timeout time.Duration `yaml:"timeout"`
}

// BranchesConfig holds settings for which branches to search for builds.
type BranchesConfig struct {
	// Active is the branch searched first. When empty, the value of the
	// environment variable named by ActiveEnvVar is used instead.
	Active string `yaml:"active"`

	// ActiveEnvVar is the name of the environment variable holding the
	// active branch, used only when Active is empty.
	ActiveEnvVar string `yaml:"activeEnvVar"`

	// Default is the fallback branch, always searched after the active
	// branch.
	Default string `yaml:"default"`
}

// OutputConfig holds settings for where artifacts are written.
type OutputConfig struct {
	// Dir is the destination directory. Artifacts are written to it by
	// their base filename.
	//
	// A value on the form "s3://bucket/prefix" uploads the artifacts to an
	// S3-compatible bucket instead, using the settings in S3.
	Dir string `yaml:"dir"`

	S3 S3Config `yaml:"s3"`
}

// S3Config holds settings for uploading artifacts to an S3-compatible object
// store, such as MinIO, used when the output dir is an s3:// URL.
type S3Config struct {
	// Endpoint is the host and optional port of the object store, without
	// scheme, such as "s3.amazonaws.com" or "localhost:9000".
	Endpoint string `yaml:"endpoint"`

	Region string `yaml:"region"`

	// AccessKey and SecretKey are the static credentials. Set via
	// CFY_FETCH_OUTPUT_S3_ACCESSKEY and CFY_FETCH_OUTPUT_S3_SECRETKEY, or in
	// a .env file.
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`

	// UseSSL enables HTTPS towards the endpoint.
	UseSSL bool `yaml:"useSsl"`
}

// RequestsConfig holds settings for the request file.
type RequestsConfig struct {
	// File is the path to the YAML file declaring repositories, jobs, and
	// artifact globs.
	File string `yaml:"file"`
}

// DefaultConfig is the hard-coded default values for cfy-fetch's configs.
var DefaultConfig = Config{
	CircleCI: CircleCIConfig{
		APIURL:       circleci.DefaultAPIURL,
		VCSType:      "github",
		Organization: "cloudify-cosmo",
		PageSize:     circleci.DefaultPageSize,
		Timeout:      5 * time.Minute,
	},
	Branches: BranchesConfig{
		ActiveEnvVar: "CIRCLE_BRANCH",
		Default:      "master",
	},
	Output: OutputConfig{
		Dir: ".",
		S3: S3Config{
			Endpoint: "s3.amazonaws.com",
			UseSSL:   true,
		},
	},
	Requests: RequestsConfig{
		File: "cfy-fetch-requests.yml",
	},
}

// LoadConfig looks for, parses and validates the config and returns it as a
// Config object.
func LoadConfig() (Config, error) {
	cfgBuilder := config.NewBuilder(DefaultConfig)

	cfgBuilder.AddConfigYAMLFile("~/.config/cloudify/cfy-fetch/cfy-fetch-config.yml")
	cfgBuilder.AddConfigYAMLFile("cfy-fetch-config.yml")
	if cfgFile, ok := os.LookupEnv("CFY_FETCH_CONFIG"); ok {
		cfgBuilder.AddConfigYAMLFile(cfgFile)
	}
	cfgBuilder.AddEnvironmentVariables("CFY_FETCH")

	var cfg Config
	if err := cfgBuilder.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CircleCI.APIURL == "" {
		return errors.New("circleci.apiUrl must not be empty")
	}
	c.CircleCI.APIURL = strings.TrimSuffix(c.CircleCI.APIURL, "/")
	vcs, ok := parseVCSType(c.CircleCI.VCSType)
	if !ok {
		return fmt.Errorf(`invalid VCS type: circleci.vcsType=%q, must be "github" or "bitbucket"`, c.CircleCI.VCSType)
	}
	c.CircleCI.VCSType = vcs
	if c.CircleCI.PageSize <= 0 {
		return fmt.Errorf("circleci.pageSize must be positive, got %d", c.CircleCI.PageSize)
	}
	if c.CircleCI.Timeout < 0 {
		return fmt.Errorf("circleci.timeout must not be negative, got %s", c.CircleCI.Timeout)
	}
	if c.Branches.Default == "" {
		return errors.New("branches.default must not be empty")
	}
	return nil
}

func parseVCSType(s string) (string, bool) {
	switch strings.ToLower(s) {
	case "github", "gh":
		return "github", true
	case "bitbucket", "bb":
		return "bitbucket", true
	default:
		return "", false
	}
}

// ActiveBranch returns the configured active branch, reading it from the
// environment variable named by ActiveEnvVar if not set explicitly.
func (c BranchesConfig) ActiveBranch(lookupEnv func(string) (string, bool)) string {
	if c.Active != "" {
		return c.Active
	}
	if c.ActiveEnvVar == "" || lookupEnv == nil {
		return ""
	}
	value, _ := lookupEnv(c.ActiveEnvVar)
	return strings.TrimSpace(value)
}

// SearchOrder returns the ordered branches to search for builds, with the
// active branch first.
func (c BranchesConfig) SearchOrder(lookupEnv func(string) (string, bool)) []string {
	return BranchOrder(c.ActiveBranch(lookupEnv), c.Default)
}

// BranchOrder returns the active branch followed by the fallback branch,
// without duplicates or empty names. The fallback is always included, even
// when it equals the active branch.
func BranchOrder(active, fallback string) []string {
	var order []string
	for _, b := range []string{active, fallback} {
		if b == "" || slices.Contains(order, b) {
			continue
		}
		order = append(order, b)
	}
	return order
}

// Redacted returns a copy of the config with secrets masked, suitable for
// printing.
func (c Config) Redacted() Config {
	if c.CircleCI.Token != "" {
		c.CircleCI.Token = "********"
	}
	if c.Output.S3.SecretKey != "" {
		c.Output.S3.SecretKey = "********"
	}
	return c
}

// YAML returns the config serialized as YAML, with secrets masked.
func (c Config) YAML() (string, error) {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return "", err
	}
	return string(data), nil
}
