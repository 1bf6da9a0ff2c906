package cmd

import (
	"fmt"
	"time"

	"github.com/mstoykov/envconfig"

	"github.com/testwise/runcore/errext"
	"github.com/testwise/runcore/errext/exitcodes"
	"github.com/testwise/runcore/execution"
	"github.com/testwise/runcore/fieldcrypt"
)

// config holds everything the run command needs from the environment.
// Flags override it where a matching flag exists.
type config struct {
	BackendURL    string        `envconfig:"RUNCORE_BACKEND_URL"`
	APIToken      string        `envconfig:"RUNCORE_API_TOKEN"`
	SandboxDir    string        `envconfig:"RUNCORE_SANDBOX_DIR" default:"/tmp/runcore"`
	RunTimeout    time.Duration `envconfig:"RUNCORE_RUN_TIMEOUT"`
	Browser       string        `envconfig:"RUNCORE_BROWSER" default:"chromium"`
	RunnerPath    string        `envconfig:"RUNCORE_RUNNER_PATH" default:"testwise-runner"`
	EncryptionKey string        `envconfig:"RUNCORE_ENCRYPTION_KEY"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, errext.WithExitCodeIfNone(
			fmt.Errorf("reading configuration from the environment: %w", err),
			exitcodes.InvalidConfig,
		)
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = execution.DefaultRunTimeout
	}
	return cfg, nil
}

func (c config) validateRemote() error {
	if c.BackendURL == "" {
		return errext.WithHint(
			errext.WithExitCodeIfNone(fmt.Errorf("no backend URL configured"), exitcodes.InvalidConfig),
			"set RUNCORE_BACKEND_URL or pass --backend",
		)
	}
	if c.APIToken == "" {
		return errext.WithHint(
			errext.WithExitCodeIfNone(fmt.Errorf("no API token configured"), exitcodes.InvalidConfig),
			"set RUNCORE_API_TOKEN",
		)
	}
	return nil
}

// keyStore selects the field decryption source: the configured static key,
// or none, which leaves stored values untouched.
func (c config) keyStore() (fieldcrypt.KeyStore, error) {
	if c.EncryptionKey == "" {
		return fieldcrypt.NoKeys{}, nil
	}
	store, err := fieldcrypt.NewStaticKeyStore(c.EncryptionKey)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	return store, nil
}
