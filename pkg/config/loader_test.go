package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerr "github.com/gatewise/gatewise-core/pkg/errors"
)

// secret mirrors the redacting string types the client configs use, to
// pin that named string kinds bind from the environment.
type secret string

type databaseSettings struct {
	URI      string        `env:"POSTGRES_URI" yaml:"uri"`
	Password secret        `env:"POSTGRES_PASSWORD" yaml:"-"`
	MaxConns int32         `env:"POSTGRES_MAX_CONNS" envDefault:"10" yaml:"max_conns"`
	Timeout  time.Duration `env:"POSTGRES_CONNECT_TIMEOUT" envDefault:"10s" yaml:"connect_timeout"`
}

type serverSettings struct {
	Addr       string           `env:"ADDR" envDefault:":8080" yaml:"addr"`
	SigningKey string           `env:"SIGNING_KEY" required:"true" yaml:"signing_key"`
	Issuer     string           `env:"ISSUER" envDefault:"gatewise-core" yaml:"issuer"`
	TokenTTL   time.Duration    `env:"TOKEN_TTL" envDefault:"24h" yaml:"token_ttl"`
	Debug      bool             `env:"DEBUG" yaml:"debug"`
	Postgres   databaseSettings `yaml:"postgres"`
}

const testKey = "0123456789abcdef0123456789abcdef"

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ---------------------------------------------------------------------------
// Layer precedence
// ---------------------------------------------------------------------------

func TestLoad_DefaultsOnly(t *testing.T) {
	t.Setenv("GATEWISE_SIGNING_KEY", testKey)

	var cfg serverSettings
	require.NoError(t, New().WithEnvPrefix("GATEWISE").Load(&cfg))

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "gatewise-core", cfg.Issuer)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
	assert.Equal(t, 10*time.Second, cfg.Postgres.Timeout)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("GATEWISE_SIGNING_KEY", testKey)
	t.Setenv("GATEWISE_ADDR", ":9090")
	t.Setenv("GATEWISE_TOKEN_TTL", "30m")
	t.Setenv("GATEWISE_DEBUG", "true")
	t.Setenv("GATEWISE_POSTGRES_MAX_CONNS", "50")
	t.Setenv("GATEWISE_POSTGRES_PASSWORD", "hunter2")

	var cfg serverSettings
	require.NoError(t, New().WithEnvPrefix("GATEWISE").Load(&cfg))

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.True(t, cfg.Debug)
	assert.Equal(t, int32(50), cfg.Postgres.MaxConns)
	assert.Equal(t, secret("hunter2"), cfg.Postgres.Password)
}

func TestLoad_FileOverridesDefault(t *testing.T) {
	t.Setenv("GATEWISE_SIGNING_KEY", testKey)
	path := writeYAML(t, `
addr: ":3000"
issuer: staging-issuer
postgres:
  uri: postgres://db.staging:5432/gatewise
  max_conns: 25
`)

	var cfg serverSettings
	require.NoError(t, New().WithEnvPrefix("GATEWISE").WithFile(path).Load(&cfg))

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "staging-issuer", cfg.Issuer)
	assert.Equal(t, "postgres://db.staging:5432/gatewise", cfg.Postgres.URI)
	assert.Equal(t, int32(25), cfg.Postgres.MaxConns)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL, "defaults still fill fields the file omits")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("GATEWISE_SIGNING_KEY", testKey)
	t.Setenv("GATEWISE_ADDR", ":9090")
	path := writeYAML(t, `addr: ":3000"`)

	var cfg serverSettings
	require.NoError(t, New().WithEnvPrefix("GATEWISE").WithFile(path).Load(&cfg))

	assert.Equal(t, ":9090", cfg.Addr)
}

func TestLoad_NoPrefix(t *testing.T) {
	t.Setenv("SIGNING_KEY", testKey)
	t.Setenv("ISSUER", "bare-issuer")

	var cfg serverSettings
	require.NoError(t, New().Load(&cfg))

	assert.Equal(t, "bare-issuer", cfg.Issuer)
}

// ---------------------------------------------------------------------------
// File handling
// ---------------------------------------------------------------------------

func TestLoad_MissingFileIgnored(t *testing.T) {
	t.Setenv("GATEWISE_SIGNING_KEY", testKey)

	var cfg serverSettings
	loader := New().WithEnvPrefix("GATEWISE").WithFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, loader.Load(&cfg))
	assert.Equal(t, ":8080", cfg.Addr)
}

func TestLoad_MalformedFileRejected(t *testing.T) {
	t.Setenv("GATEWISE_SIGNING_KEY", testKey)
	path := writeYAML(t, "addr: [unclosed")

	var cfg serverSettings
	err := New().WithEnvPrefix("GATEWISE").WithFile(path).Load(&cfg)
	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeInternalConfiguration))
}

func TestLoad_UnsupportedExtensionRejected(t *testing.T) {
	var cfg serverSettings
	err := New().WithFile("config.toml").Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extension")
}

func TestLoad_TraversalPathRejected(t *testing.T) {
	var cfg serverSettings
	err := New().WithFile("../../etc/config.yaml").Load(&cfg)
	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeInternalConfiguration))
}

// ---------------------------------------------------------------------------
// Input and parse errors
// ---------------------------------------------------------------------------

func TestLoad_RequiresStructPointer(t *testing.T) {
	t.Parallel()

	assert.Error(t, New().Load(nil))
	assert.Error(t, New().Load(serverSettings{}))
	value := "not a struct"
	assert.Error(t, New().Load(&value))
}

func TestLoad_ParseFailures(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "GATEWISE_TOKEN_TTL", "soon"},
		{"bad integer", "GATEWISE_POSTGRES_MAX_CONNS", "many"},
		{"bad bool", "GATEWISE_DEBUG", "yep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GATEWISE_SIGNING_KEY", testKey)
			t.Setenv(tt.key, tt.value)

			var cfg serverSettings
			err := New().WithEnvPrefix("GATEWISE").Load(&cfg)
			require.Error(t, err)
			assert.True(t, gwerr.HasCode(err, gwerr.CodeInternalConfiguration))
		})
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg serverSettings
	err := New().WithEnvPrefix("GATEWISE").Load(&cfg)
	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeValidationRequired))
	assert.Contains(t, err.Error(), "SigningKey")
}

type validatedSettings struct {
	TTL time.Duration `env:"TTL" envDefault:"1h"`
	err error
}

func (v *validatedSettings) Validate() error { return v.err }

func TestLoad_ValidatorErrorsPassThrough(t *testing.T) {
	t.Parallel()

	gwe := gwerr.New(gwerr.CodeValidation, "ttl out of range")
	cfg := validatedSettings{err: gwe}
	err := New().Load(&cfg)
	assert.Equal(t, gwe, err, "gwerr errors are not rewrapped")

	cfg = validatedSettings{err: assert.AnError}
	err = New().Load(&cfg)
	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeValidation))
}

func TestLoad_ValidatorRunsAfterBinding(t *testing.T) {
	t.Parallel()

	cfg := validatedSettings{}
	require.NoError(t, New().Load(&cfg))
	assert.Equal(t, time.Hour, cfg.TTL, "defaults applied before Validate runs")
}

// ---------------------------------------------------------------------------
// MustLoad
// ---------------------------------------------------------------------------

func TestMustLoad(t *testing.T) {
	t.Setenv("GATEWISE_SIGNING_KEY", testKey)

	cfg := MustLoad[serverSettings](New().WithEnvPrefix("GATEWISE"))
	assert.Equal(t, testKey, cfg.SigningKey)
}

func TestMustLoad_PanicsOnFailure(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		MustLoad[validatedSettings](New().WithFile("config.toml"))
	})
}
