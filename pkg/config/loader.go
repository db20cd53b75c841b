// Package config loads service configuration in three layers. Values
// resolve in priority order, lowest first:
//
//	envDefault struct tags
//	an optional YAML file
//	environment variables
//
// Defaults live in the struct tags, a deployment's YAML manifest overrides
// them, and environment variables (Kubernetes ConfigMaps and Secrets) have
// the final word.
//
// Fields opt in with an `env:"NAME"` tag; the loader's prefix is prepended
// with an underscore, so `env:"ADDR"` with prefix GATEWISE reads
// GATEWISE_ADDR. Nested structs are traversed and their fields bind under
// their own env names, which lets a component config such as
// [postgres.Config] carry its names with it wherever it is embedded.
// `envDefault:"v"` supplies a fallback for fields nothing else set, and
// `required:"true"` rejects a configuration where the field ends up zero.
// File loading uses the yaml tags.
//
//	type ServerConfig struct {
//	    Addr       string          `env:"ADDR" envDefault:":8080" yaml:"addr"`
//	    SigningKey string          `env:"SIGNING_KEY" required:"true" yaml:"signing_key"`
//	    Postgres   postgres.Config `yaml:"postgres"`
//	}
//
//	cfg := config.MustLoad[ServerConfig](
//	    config.New().WithEnvPrefix("GATEWISE").WithFile(os.Getenv("GATEWISE_CONFIG_FILE")),
//	)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	gwerr "github.com/gatewise/gatewise-core/pkg/errors"
)

// Validator lets a configuration struct add checks the tags cannot
// express, such as cross-field constraints. When the struct passed to
// [Loader.Load] implements it, Validate runs after required-field
// checking. A returned [*gwerr.Error] passes through unchanged; any other
// error is wrapped with [gwerr.CodeValidation].
type Validator interface {
	Validate() error
}

// Loader resolves a configuration struct from its three layers. Configure
// it with [Loader.WithEnvPrefix] and [Loader.WithFile], then call
// [Loader.Load]. A Loader holds no state across calls and may be reused.
type Loader struct {
	prefix string
	path   string
}

// New returns a Loader that reads environment variables only, with no
// prefix and no file.
func New() *Loader {
	return &Loader{}
}

// WithEnvPrefix sets the uppercased prefix prepended to every env tag
// name. An empty prefix leaves names bare.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.prefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets the path of an optional YAML file (.yaml or .yml). A path
// that does not exist is skipped, so the same binary runs with and
// without a mounted config file. An empty path disables file loading.
func (l *Loader) WithFile(path string) *Loader {
	l.path = path
	return l
}

// Load resolves configuration into target, which must be a non-nil
// pointer to a struct. After the three layers are applied, required
// fields are checked and the struct's [Validator] runs if implemented.
// Loading failures carry [gwerr.CodeInternalConfiguration]; validation
// failures carry [gwerr.CodeValidationRequired] or [gwerr.CodeValidation].
func (l *Loader) Load(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return gwerr.New(gwerr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}
	elem := rv.Elem()
	if elem.Kind() != reflect.Struct {
		return gwerr.New(gwerr.CodeInternalConfiguration,
			"config: Load requires a pointer to a struct")
	}

	if l.path != "" {
		if err := l.unmarshalFile(target); err != nil {
			return err
		}
	}
	if err := l.bind(elem); err != nil {
		return err
	}
	if err := checkRequired(elem, ""); err != nil {
		return err
	}

	if v, ok := target.(Validator); ok {
		if err := v.Validate(); err != nil {
			if _, isGWErr := gwerr.AsError(err); isGWErr {
				return err
			}
			return gwerr.Wrap(err, gwerr.CodeValidation,
				"config: validation failed")
		}
	}
	return nil
}

// MustLoad loads a T and panics on failure. Meant for process startup,
// where an unusable configuration should stop the service before it
// serves anything.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

// unmarshalFile merges the YAML file into target. A missing file is fine;
// an unreadable or unparseable one is not. Paths containing traversal
// sequences are rejected outright.
func (l *Loader) unmarshalFile(target any) error {
	if strings.Contains(l.path, "..") {
		return gwerr.New(gwerr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal sequences")
	}
	ext := strings.ToLower(filepath.Ext(l.path))
	if ext != ".yaml" && ext != ".yml" {
		return gwerr.Newf(gwerr.CodeInternalConfiguration,
			"config: unsupported file extension %q, use .yaml or .yml", ext)
	}

	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return gwerr.Wrapf(err, gwerr.CodeInternalConfiguration,
			"config: reading %q failed", l.path)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return gwerr.Wrapf(err, gwerr.CodeInternalConfiguration,
			"config: parsing %q failed", l.path)
	}
	return nil
}

// bind walks the struct once, setting each env-tagged field from its
// environment variable when present, or from its envDefault tag when the
// field is still zero after the file layer.
func (l *Loader) bind(rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct {
			if err := l.bind(field); err != nil {
				return err
			}
			continue
		}

		name := sf.Tag.Get("env")
		raw, fromEnv := "", false
		if name != "" {
			if l.prefix != "" {
				name = l.prefix + "_" + name
			}
			raw, fromEnv = os.LookupEnv(name)
		}
		if !fromEnv {
			if raw = sf.Tag.Get("envDefault"); raw == "" || !field.IsZero() {
				continue
			}
			name = "default"
		}
		if err := setValue(field, raw); err != nil {
			return gwerr.Wrapf(err, gwerr.CodeInternalConfiguration,
				"config: field %q (%s)", sf.Name, name)
		}
	}
	return nil
}

// checkRequired walks the struct verifying every `required:"true"` field
// ended up non-zero, reporting the first failure with its dotted path.
func checkRequired(rv reflect.Value, path string) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}

		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}
		if field.Kind() == reflect.Struct {
			if err := checkRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}
		if sf.Tag.Get("required") == "true" && field.IsZero() {
			return gwerr.Newf(gwerr.CodeValidationRequired,
				"config: required field %q is empty", fieldPath)
		}
	}
	return nil
}

// durationType distinguishes time.Duration, whose reflect kind is int64,
// from plain integer fields.
var durationType = reflect.TypeOf(time.Duration(0))

// setValue parses raw into the field. Strings cover named string types
// such as Secret; everything this module configures fits the four kinds
// below.
func setValue(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid bool %q: %w", raw, err)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", raw, err)
		}
		field.SetInt(n)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
