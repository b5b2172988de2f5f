// Package config loads htsget-server's layered configuration: defaults,
// then an optional config file, then HTSGET_* environment variables, then
// CLI flags, in that order of increasing precedence. Grounded on the
// teacher pool's Cobra command shape (leo-pony-model-runner's
// cmd/cli/commands) paired with Viper, the standard Go ecosystem partner
// for Cobra-based layered config — the pool has no bespoke config loader of
// its own to imitate, so this package is the one place the stack is chosen
// for ecosystem fit rather than direct pack precedent (see DESIGN.md).
package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// StorageKind names which internal/storage.Backend variant to construct.
type StorageKind string

const (
	StorageLocal  StorageKind = "local"
	StorageGCS    StorageKind = "gcs"
	StorageS3     StorageKind = "s3"
	StorageAzBlob StorageKind = "azblob"
	StorageRemote StorageKind = "remote"
)

// Config is the full set of knobs htsget-server reads at startup.
type Config struct {
	// Listen is the address the HTTP ticket server binds, e.g. ":8080".
	Listen string `mapstructure:"listen" yaml:"listen"`
	// LogLevel is a logrus level name ("debug", "info", "warn", "error").
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	Storage StorageKind `mapstructure:"storage" yaml:"storage"`
	// LocalRoot is the directory internal/storage/local serves objects
	// from, when Storage is "local".
	LocalRoot string `mapstructure:"local_root" yaml:"local_root"`
	// LocalBlockPath is the path prefix the data-block proxy server is
	// mounted at, when Storage is "local".
	LocalBlockPath string `mapstructure:"local_block_path" yaml:"local_block_path"`

	// RemoteDataBaseURL is the upstream endpoint internal/storage/remote
	// forwards requests to, when Storage is "remote"; data and index
	// objects are both fetched under it. RemoteIndexBaseURL is accepted
	// but not read: no separate index endpoint is used.
	RemoteDataBaseURL  string `mapstructure:"remote_data_base_url" yaml:"remote_data_base_url,omitempty"`
	RemoteIndexBaseURL string `mapstructure:"remote_index_base_url" yaml:"remote_index_base_url,omitempty"`

	GCSBucket       string `mapstructure:"gcs_bucket" yaml:"gcs_bucket,omitempty"`
	S3Bucket        string `mapstructure:"s3_bucket" yaml:"s3_bucket,omitempty"`
	AzureAccount    string `mapstructure:"azure_account" yaml:"azure_account,omitempty"`
	AzureAccountKey string `mapstructure:"azure_account_key" yaml:"azure_account_key,omitempty"`
	AzureBucket     string `mapstructure:"azure_container" yaml:"azure_container,omitempty"`

	// Crypt4GHServerSecKeyPath, when set, treats every object the
	// configured Storage backend serves as Crypt4GH-wrapped: each request
	// is served through a fresh internal/storage/crypt4gh.Backend built
	// around Storage and re-keyed per request, rather than Storage itself
	// being a selectable kind (its recipient key is only known once a
	// request's client-public-key header arrives, unlike every other
	// Storage kind which is fully determined at startup).
	// Crypt4GHServerKeyPath, the matching public key, is only advertised
	// on the service-info document; nothing in this server reads it back.
	Crypt4GHServerKeyPath    string `mapstructure:"crypt4gh_server_public_key" yaml:"crypt4gh_server_public_key,omitempty"`
	Crypt4GHServerSecKeyPath string `mapstructure:"crypt4gh_server_secret_key" yaml:"crypt4gh_server_secret_key,omitempty"`

	// JWTJWKSURL, when set, requires and verifies a bearer token against
	// the given JWKS endpoint for every request.
	JWTJWKSURL string `mapstructure:"jwt_jwks_url" yaml:"jwt_jwks_url,omitempty"`

	// MetricsListen, when set, serves Prometheus metrics on its own
	// address instead of the main router.
	MetricsListen string `mapstructure:"metrics_listen" yaml:"metrics_listen,omitempty"`

	// HTTPCacheDir is the directory the outbound HTTP response cache (for
	// remote-backend and JWKS fetches) persists to.
	HTTPCacheDir string `mapstructure:"http_cache_dir" yaml:"http_cache_dir,omitempty"`

	// AnalyticsPropertyID/AnalyticsClientID, when both set, enable
	// per-request usage tracking via internal/analytics.
	AnalyticsPropertyID string `mapstructure:"analytics_property_id" yaml:"analytics_property_id,omitempty"`
	AnalyticsClientID   string `mapstructure:"analytics_client_id" yaml:"analytics_client_id,omitempty"`
}

// envPrefix matches spec's HTSGET_* environment variable convention.
const envPrefix = "HTSGET"

// Default returns the configuration's zero-risk starting point: a local
// filesystem backend rooted at the current directory, listening on
// :8080, logging at info level.
func Default() Config {
	return Config{
		Listen:         ":8080",
		LogLevel:       "info",
		Storage:        StorageLocal,
		LocalRoot:      ".",
		LocalBlockPath: "/block",
	}
}

// New builds a Viper instance seeded with Default's values, ready to layer
// a config file and HTSGET_* environment variables over; flags are bound
// separately via BindFlags so callers can wire it into a *cobra.Command.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("listen", defaults.Listen)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("storage", string(defaults.Storage))
	v.SetDefault("local_root", defaults.LocalRoot)
	v.SetDefault("local_block_path", defaults.LocalBlockPath)

	return v
}

// BindFlags registers one flag per Config field onto flags (--config itself
// is registered by the caller),
// then binds each to v so a flag set on the command line always wins over
// the config file and environment.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.String("listen", v.GetString("listen"), "address the HTTP ticket server listens on")
	flags.String("log-level", v.GetString("log_level"), "logrus log level")
	flags.String("storage", v.GetString("storage"), "storage backend: local, gcs, s3, azblob, remote")
	flags.String("local-root", v.GetString("local_root"), "directory the local storage backend serves from")
	flags.String("local-block-path", v.GetString("local_block_path"), "path prefix for the local data-block proxy")
	flags.String("remote-data-base-url", "", "upstream data endpoint for the remote storage backend")
	flags.String("remote-index-base-url", "", "upstream index endpoint for the remote storage backend")
	flags.String("gcs-bucket", "", "GCS bucket for the gcs storage backend")
	flags.String("s3-bucket", "", "S3 bucket for the s3 storage backend")
	flags.String("azure-account", "", "Azure storage account for the azblob storage backend")
	flags.String("azure-account-key", "", "Azure storage account shared key for the azblob storage backend")
	flags.String("azure-container", "", "Azure container for the azblob storage backend")
	flags.String("crypt4gh-server-public-key", "", "Crypt4GH server public key file")
	flags.String("crypt4gh-server-secret-key", "", "Crypt4GH server secret key file")
	flags.String("jwt-jwks-url", "", "JWKS endpoint for bearer-token verification")
	flags.String("metrics-listen", "", "address to serve Prometheus metrics on, if set")
	flags.String("http-cache-dir", "", "directory for the outbound HTTP response cache")
	flags.String("analytics-property-id", "", "Google Analytics property ID for optional usage tracking")
	flags.String("analytics-client-id", "", "Google Analytics client ID for optional usage tracking")

	flags.VisitAll(func(f *pflag.Flag) {
		key := flagToKey(f.Name)
		if err := v.BindPFlag(key, f); err != nil {
			panic(fmt.Sprintf("binding flag %q: %v", f.Name, err))
		}
	})
}

func flagToKey(name string) string {
	key := make([]byte, 0, len(name))
	for _, r := range name {
		if r == '-' {
			key = append(key, '_')
			continue
		}
		key = append(key, byte(r))
	}
	return string(key)
}

// Load reads the config file at path (if non-empty) into v, then unmarshals
// the fully-layered result (defaults < file < env < flags) into a Config.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %q: %v", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %v", err)
	}
	return cfg, nil
}
