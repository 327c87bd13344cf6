// Package config loads the lineauth server options from a config file and the
// environment.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/pomerium/lineauth/internal/sessions/cookie"
	"github.com/pomerium/lineauth/internal/sessions/memory"
	"github.com/pomerium/lineauth/internal/urlutil"
	"github.com/pomerium/lineauth/pkg/identity/oauth"
	"github.com/pomerium/lineauth/pkg/identity/oauth/line"
)

// Session backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Options are the configuration options for the lineauth server.
type Options struct {
	// Address specifies the host and port to serve HTTP requests from.
	Address string `mapstructure:"address" yaml:"address,omitempty"`
	// LogLevel sets the global override for log level. All Loggers will use at
	// least this value.
	LogLevel string `mapstructure:"log_level" yaml:"log_level,omitempty"`

	// ClientID is the LINE Login channel id.
	ClientID string `mapstructure:"client_id" yaml:"client_id,omitempty"`
	// ClientSecret is the LINE Login channel secret.
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret,omitempty"`
	// RedirectURIString is the callback URL registered with LINE. When empty it
	// is derived from each request.
	RedirectURIString string `mapstructure:"redirect_uri" yaml:"redirect_uri,omitempty"`
	RequestPath       string `mapstructure:"request_path" yaml:"request_path,omitempty"`
	CallbackPath      string `mapstructure:"callback_path" yaml:"callback_path,omitempty"`
	Scope             string `mapstructure:"scope" yaml:"scope,omitempty"`
	SkipInfo          bool   `mapstructure:"skip_info" yaml:"skip_info,omitempty"`
	// PKCE sends an S256 code challenge with every authorization request.
	PKCE bool `mapstructure:"pkce" yaml:"pkce,omitempty"`

	// Endpoint overrides, for staging and tests.
	AuthorizeURL string `mapstructure:"authorize_url" yaml:"authorize_url,omitempty"`
	TokenURL     string `mapstructure:"token_url" yaml:"token_url,omitempty"`
	UserInfoURL  string `mapstructure:"userinfo_url" yaml:"userinfo_url,omitempty"`
	VerifyURL    string `mapstructure:"verify_url" yaml:"verify_url,omitempty"`
	RevokeURL    string `mapstructure:"revoke_url" yaml:"revoke_url,omitempty"`

	CookieName   string `mapstructure:"cookie_name" yaml:"cookie_name,omitempty"`
	CookieSecret string `mapstructure:"cookie_secret" yaml:"cookie_secret,omitempty"`
	CookieSecure bool   `mapstructure:"cookie_secure" yaml:"cookie_secure,omitempty"`

	SessionTTL     time.Duration `mapstructure:"session_ttl" yaml:"session_ttl,omitempty"`
	SessionBackend string        `mapstructure:"session_backend" yaml:"session_backend,omitempty"`
	RedisURL       string        `mapstructure:"redis_url" yaml:"redis_url,omitempty"`
	LRUSize        int           `mapstructure:"lru_size" yaml:"lru_size,omitempty"`

	// OTLPEndpoint enables span export to an OTLP/HTTP collector.
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint,omitempty"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure" yaml:"otlp_insecure,omitempty"`

	ReadTimeout  time.Duration `mapstructure:"timeout_read" yaml:"timeout_read,omitempty"`
	WriteTimeout time.Duration `mapstructure:"timeout_write" yaml:"timeout_write,omitempty"`
	IdleTimeout  time.Duration `mapstructure:"timeout_idle" yaml:"timeout_idle,omitempty"`

	viper *viper.Viper
}

var defaultOptions = Options{
	Address:        ":8080",
	LogLevel:       "info",
	RequestPath:    line.DefaultRequestPath,
	CallbackPath:   line.DefaultCallbackPath,
	Scope:          line.DefaultScope,
	PKCE:           true,
	CookieName:     cookie.DefaultName,
	CookieSecure:   true,
	SessionTTL:     memory.DefaultTTL,
	SessionBackend: SessionBackendMemory,
	LRUSize:        memory.DefaultSize,
	ReadTimeout:    30 * time.Second,
	WriteTimeout:   0, // support streaming by default
	IdleTimeout:    5 * time.Minute,
}

// NewDefaultOptions returns a copy the default options. It's the caller's
// responsibility to do a follow up Validate call.
func NewDefaultOptions() *Options {
	newOpts := defaultOptions
	newOpts.viper = viper.New()
	return &newOpts
}

// NewOptionsFromConfig builds the server's configuration options by parsing
// environmental variables and config file.
func NewOptionsFromConfig(configFile string) (*Options, error) {
	o, err := optionsFromViper(configFile)
	if err != nil {
		return nil, fmt.Errorf("config: options from config file %q: %w", configFile, err)
	}
	return o, nil
}

func optionsFromViper(configFile string) (*Options, error) {
	// start a copy of the default options
	o := NewDefaultOptions()
	v := o.viper
	// Load up config
	err := bindEnvs(v)
	if err != nil {
		return nil, fmt.Errorf("failed to bind options to env vars: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var metadata mapstructure.Metadata
	if err := v.Unmarshal(o, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)), func(c *mapstructure.DecoderConfig) { c.Metadata = &metadata }); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(metadata.Unused) > 0 {
		return nil, fmt.Errorf("unknown configuration keys: %s", strings.Join(metadata.Unused, ", "))
	}

	// This is necessary because v.Unmarshal will overwrite .viper field.
	o.viper = v

	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("validation error %w", err)
	}
	return o, nil
}

// bindEnvs binds every field with a "mapstructure" tag to the upper cased
// environment variable of the same name.
func bindEnvs(v *viper.Viper) error {
	t := reflect.TypeOf(Options{})
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, hasTag := field.Tag.Lookup("mapstructure")
		if !hasTag || tag == "-" {
			continue
		}
		key, _, _ := strings.Cut(tag, ",")
		envName := strings.ToUpper(key)
		if err := v.BindEnv(key, envName); err != nil {
			return fmt.Errorf("failed to bind field '%s' to env var '%s': %w", field.Name, envName, err)
		}
	}
	return nil
}

// Validate ensures the Options fields are valid, and hydrated.
func (o *Options) Validate() error {
	var result *multierror.Error

	if o.ClientID == "" {
		result = multierror.Append(result, errors.New("config: client_id is required"))
	}
	if o.ClientSecret == "" {
		result = multierror.Append(result, errors.New("config: client_secret is required"))
	}
	if o.RedirectURIString != "" {
		u, err := urlutil.ParseAndValidateURL(o.RedirectURIString)
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("config: bad redirect_uri %q: %w", o.RedirectURIString, err))
		case u.Path != o.CallbackPath:
			// callbacks are only routed on callback_path
			result = multierror.Append(result, fmt.Errorf("config: redirect_uri path %q must equal callback_path %q", u.Path, o.CallbackPath))
		}
	}
	for name, path := range map[string]string{"request_path": o.RequestPath, "callback_path": o.CallbackPath} {
		if !strings.HasPrefix(path, "/") {
			result = multierror.Append(result, fmt.Errorf("config: %s must start with a slash: %q", name, path))
		}
	}
	if o.RequestPath == o.CallbackPath {
		result = multierror.Append(result, errors.New("config: request_path and callback_path must differ"))
	}
	for name, rawURL := range map[string]string{
		"authorize_url": o.AuthorizeURL,
		"token_url":     o.TokenURL,
		"userinfo_url":  o.UserInfoURL,
		"verify_url":    o.VerifyURL,
		"revoke_url":    o.RevokeURL,
	} {
		if rawURL == "" {
			continue
		}
		if _, err := urlutil.ParseAndValidateURL(rawURL); err != nil {
			result = multierror.Append(result, fmt.Errorf("config: bad %s %q: %w", name, rawURL, err))
		}
	}

	if _, err := o.GetCookieSecret(); err != nil {
		result = multierror.Append(result, err)
	}

	switch o.SessionBackend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if o.RedisURL == "" {
			result = multierror.Append(result, errors.New("config: redis_url is required for the redis session backend"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("config: unknown session_backend %q", o.SessionBackend))
	}
	if o.SessionTTL <= 0 {
		result = multierror.Append(result, errors.New("config: session_ttl must be positive"))
	}

	return result.ErrorOrNil()
}

// GetRedirectURL returns the configured redirect URL, or nil when the callback
// URL should be derived from the request.
func (o *Options) GetRedirectURL() (*url.URL, error) {
	if o.RedirectURIString == "" {
		return nil, nil
	}
	return urlutil.ParseAndValidateURL(o.RedirectURIString)
}

// GetCookieSecret returns the decoded cookie signing key.
func (o *Options) GetCookieSecret() ([]byte, error) {
	if o.CookieSecret == "" {
		return nil, errors.New("config: cookie_secret is required")
	}
	secret, err := base64.StdEncoding.DecodeString(o.CookieSecret)
	if err != nil {
		return nil, fmt.Errorf("config: cookie_secret must be base64 encoded: %w", err)
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("config: cookie_secret must be at least 32 bytes, got %d", len(secret))
	}
	return secret, nil
}

// GetOauthOptions returns the identity provider options.
func (o *Options) GetOauthOptions() (oauth.Options, error) {
	redirectURL, err := o.GetRedirectURL()
	if err != nil {
		return oauth.Options{}, err
	}
	return oauth.Options{
		ProviderName: line.Name,
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		RedirectURL:  redirectURL,
		CallbackPath: o.CallbackPath,
		Scopes:       strings.Fields(o.Scope),
		AuthURL:      o.AuthorizeURL,
		TokenURL:     o.TokenURL,
		UserInfoURL:  o.UserInfoURL,
		VerifyURL:    o.VerifyURL,
		RevokeURL:    o.RevokeURL,
		PKCE:         o.PKCE,
		SkipInfo:     o.SkipInfo,
	}, nil
}
