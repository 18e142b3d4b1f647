// Package config loads the binclass.yaml configuration file.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

// Default values for the configuration. New() references them and no other
// code should duplicate them.
const (
	DefaultConfigFile = "binclass.yaml"

	DefaultDatasetPath    = "data/mushrooms.csv"
	DefaultLabelColumn    = "type"
	DefaultPositiveLabel  = "p"
	DefaultTestSize       = 0.2
	DefaultRandomState    = 0
	DefaultRawPreviewRows = 100

	DefaultServerAddr = "127.0.0.1:8501"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"

	DefaultForestRandomState = 0
	DefaultForestNJobs       = -1

	DefaultSVMMaxIter = 1_000_000
)

// DefaultClassNames are the display names of the negative and positive class.
var DefaultClassNames = []string{"edible", "poisonous"}

//go:embed schema.json
var schemaJSON string

// configSchema is the compiled JSON Schema for binclass.yaml.
var configSchema = mustCompileSchema(schemaJSON, "binclass.schema.json")

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// DatasetConfig describes the CSV file and how it is split.
type DatasetConfig struct {
	Path           string   `yaml:"path"`
	LabelColumn    string   `yaml:"label_column"`
	PositiveLabel  string   `yaml:"positive_label"`
	ClassNames     []string `yaml:"class_names"`
	TestSize       float64  `yaml:"test_size"`
	RandomState    uint64   `yaml:"random_state"`
	Stratify       bool     `yaml:"stratify"`
	RawPreviewRows int      `yaml:"raw_preview_rows"`
}

// ServerConfig holds page server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ForestConfig holds the random forest settings that are not exposed as hyperparameters.
type ForestConfig struct {
	RandomState uint64 `yaml:"random_state"`
	NJobs       int    `yaml:"n_jobs"`
}

// SVMConfig bounds the SMO solver. A classify request holds the page lock
// while the solver runs; max_iter <= 0 uses the library default.
type SVMConfig struct {
	MaxIter int `yaml:"max_iter"`
}

// Config is the top-level configuration loaded from binclass.yaml.
type Config struct {
	Dataset DatasetConfig `yaml:"dataset"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Forest  ForestConfig  `yaml:"forest"`
	SVM     SVMConfig     `yaml:"svm"`
}

// New returns a Config with all hard-coded defaults populated.
func New() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Path:           DefaultDatasetPath,
			LabelColumn:    DefaultLabelColumn,
			PositiveLabel:  DefaultPositiveLabel,
			ClassNames:     append([]string(nil), DefaultClassNames...),
			TestSize:       DefaultTestSize,
			RandomState:    DefaultRandomState,
			RawPreviewRows: DefaultRawPreviewRows,
		},
		Server: ServerConfig{
			Addr: DefaultServerAddr,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Forest: ForestConfig{
			RandomState: DefaultForestRandomState,
			NJobs:       DefaultForestNJobs,
		},
		SVM: SVMConfig{
			MaxIter: DefaultSVMMaxIter,
		},
	}
}

// Load reads the configuration at path on top of the defaults.
// An empty path looks for DefaultConfigFile in the working directory and
// returns the defaults when it does not exist; an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return cfg, nil
}

// Parse validates data against the embedded schema and decodes it onto the defaults.
func Parse(data []byte) (*Config, error) {
	if errs := Validate(data); len(errs) > 0 {
		return nil, errors.Newf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "decoding configuration")
	}
	return cfg, nil
}

// Validate checks raw YAML bytes against the configuration schema and returns
// one message per violation.
func Validate(data []byte) []string {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}
	if doc == nil {
		// 空のファイルは既定値のみ
		return nil
	}
	err := configSchema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

// Check validates cross-field constraints the schema cannot express once
// flags have been applied on top of the file.
func (c *Config) Check() error {
	if len(c.Dataset.ClassNames) != 2 {
		return errors.Newf("class_names must have exactly 2 entries, got %d", len(c.Dataset.ClassNames))
	}
	if c.Dataset.TestSize <= 0 || c.Dataset.TestSize >= 1 {
		return errors.Newf("test_size must be in (0, 1), got %v", c.Dataset.TestSize)
	}
	return nil
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}
