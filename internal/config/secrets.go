package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"

	"flakeload/internal/common"
	"flakeload/pkg/errors"
)

const (
	keyringService   = "flakeload"
	keyringPrefix    = "@keyring:"
	defaultSecrets   = "/run/secrets"
	defaultDotEnv    = ".env"
	configFileName   = "flakeload"
	sourceEnv        = "env"
	sourceFile       = "file"
	sourceSecretsDir = "secrets-dir"
	sourceConfigFile = "config-file"
	sourceDotEnv     = "dotenv"
	sourceDefault    = "default"
)

// resolver looks a key up through every configured source in precedence order.
type resolver struct {
	lookup     func(string) (string, bool)
	secretsDir string
	file       *viper.Viper
	fileUsed   string
	dotenv     map[string]string
	keyring    func(service, user string) (string, error)
	sources    map[string]string
}

func newResolver(opts LoadOptions) (*resolver, error) {
	r := &resolver{
		lookup:  opts.Lookup,
		keyring: opts.Keyring,
		sources: make(map[string]string),
	}
	if r.lookup == nil {
		r.lookup = os.LookupEnv
	}
	if r.keyring == nil {
		r.keyring = keyring.Get
	}

	r.secretsDir = opts.SecretsDir
	if r.secretsDir == "" {
		if dir, ok := r.lookup("SECRETS_DIR"); ok && dir != "" {
			r.secretsDir = dir
		} else {
			r.secretsDir = defaultSecrets
		}
	}

	if err := r.readConfigFile(opts.ConfigFile); err != nil {
		return nil, err
	}

	dotenvPath := opts.DotEnv
	if dotenvPath == "" {
		dotenvPath = defaultDotEnv
	}
	if values, err := godotenv.Read(dotenvPath); err == nil {
		r.dotenv = values
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, errors.ErrCodeConfigUnreadable, "failed to read dotenv file").
			WithContext("path", dotenvPath)
	}

	return r, nil
}

func (r *resolver) readConfigFile(explicit string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	if explicit != "" {
		path, err := common.CleanPath(explicit)
		if err != nil {
			return errors.ConfigInvalid("config file", err.Error())
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".flakeload"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && explicit == "" {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeConfigUnreadable, "failed to read config file").
			WithContext("path", explicit)
	}

	r.file = v
	r.fileUsed = v.ConfigFileUsed()
	return nil
}

// get returns the value for key and whether any source provided it.
func (r *resolver) get(key string) (string, bool, error) {
	value, source, err := r.raw(key)
	if err != nil || source == "" {
		return "", false, err
	}

	if strings.HasPrefix(value, keyringPrefix) {
		name := strings.TrimPrefix(value, keyringPrefix)
		secret, err := r.keyring(keyringService, name)
		if err != nil {
			return "", false, errors.Wrap(err, errors.ErrCodeConfigUnreadable, fmt.Sprintf("failed to read %s from the OS keyring", key)).
				WithContext("key", key).
				WithContext("keyring", name).
				WithSuggestions(fmt.Sprintf("Store it with: keyring set %s %s", keyringService, name))
		}
		value = secret
		source += "+keyring"
	}

	r.sources[key] = source
	return value, true, nil
}

func (r *resolver) raw(key string) (string, string, error) {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return v, sourceEnv, nil
	}

	if path, ok := r.lookup(key + "_FILE"); ok && path != "" {
		v, err := readSecretFile(path)
		if err != nil {
			return "", "", errors.Wrap(err, errors.ErrCodeConfigUnreadable, fmt.Sprintf("failed to read %s_FILE", key)).
				WithContext("key", key).
				WithContext("path", path)
		}
		return v, sourceFile, nil
	}

	if path := r.secretPath(key); path != "" {
		if v, err := readSecretFile(path); err == nil && v != "" {
			return v, sourceSecretsDir, nil
		}
	}

	if r.file != nil && r.file.IsSet(key) {
		if v := r.file.GetString(key); v != "" {
			return v, sourceConfigFile, nil
		}
	}

	if v, ok := r.dotenv[key]; ok && v != "" {
		return v, sourceDotEnv, nil
	}

	return "", "", nil
}

func (r *resolver) secretPath(key string) string {
	if r.secretsDir == "" {
		return ""
	}
	return filepath.Join(r.secretsDir, strings.ToLower(key))
}

// searched lists every location tried for key, for error messages.
func (r *resolver) searched(key string) []string {
	out := []string{"env " + key, "env " + key + "_FILE"}
	if p := r.secretPath(key); p != "" {
		out = append(out, p)
	}
	if r.fileUsed != "" {
		out = append(out, r.fileUsed)
	}
	return out
}

func readSecretFile(path string) (string, error) {
	cleaned, err := common.CleanPath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(cleaned) // #nosec G304 - path is validated
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
