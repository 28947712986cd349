// Package config resolves the settings of one flakeload invocation from
// the environment, secret files, an optional YAML file and the OS keyring.
package config

import (
	"crypto/rsa"
	"fmt"
	"strconv"
	"strings"

	"flakeload/internal/keypair"
	"flakeload/internal/records"
	"flakeload/pkg/errors"
)

// Dataset selects what the run job loads.
type Dataset string

const (
	DatasetCustomers Dataset = "customers"
	DatasetPeople    Dataset = "people"
)

const redactedValue = "********"

// Binding is a role together with the warehouse it runs on.
type Binding struct {
	Role      string `yaml:"role"`
	Warehouse string `yaml:"warehouse"`
}

// Configured reports whether the binding names a role.
func (b Binding) Configured() bool {
	return b.Role != ""
}

// Credentials identify the Snowflake user and its key pair.
type Credentials struct {
	Account        string          `yaml:"account"`
	User           string          `yaml:"user"`
	PrivateKeyPEM  string          `yaml:"private_key"`
	Passphrase     string          `yaml:"private_key_passphrase,omitempty"`
	KeyFingerprint string          `yaml:"key_fingerprint"`
	PrivateKey     *rsa.PrivateKey `yaml:"-"`
}

// OrderSettings configure the orders produce/consume commands.
type OrderSettings struct {
	ConnectionString string `yaml:"connection_string"`
	Topic            string `yaml:"topic"`
	ConsumerGroup    string `yaml:"consumer_group"`
	ToProduce        int    `yaml:"to_produce"`
	Producers        int    `yaml:"producers"`
	BatchSize        int    `yaml:"batch_size"`
	ToConsume        int    `yaml:"to_consume"`
	Table            string `yaml:"table"`
	FileFormat       string `yaml:"file_format"`
}

// LogSettings configure the process logger.
type LogSettings struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// Settings is the immutable result of Load.
type Settings struct {
	Credentials        Credentials       `yaml:"credentials"`
	Database           string            `yaml:"database"`
	Schema             string            `yaml:"schema"`
	Bulk               Binding           `yaml:"bulk"`
	Streaming          Binding           `yaml:"streaming"`
	Dataset            Dataset           `yaml:"dataset"`
	CustomerTable      string            `yaml:"customer_table"`
	PeopleTable        string            `yaml:"people_table"`
	NumberOfCustomers  int               `yaml:"number_of_customers"`
	CustomerFileFormat string            `yaml:"customer_file_format"`
	PeopleFileFormat   string            `yaml:"people_file_format"`
	Locales            []records.Locale  `yaml:"locales"`
	Orders             OrderSettings     `yaml:"orders"`
	Log                LogSettings       `yaml:"log"`
	Sources            map[string]string `yaml:"sources"`
}

// LoadOptions override where Load looks for values. The zero value reads
// the process environment.
type LoadOptions struct {
	// Lookup replaces os.LookupEnv.
	Lookup func(key string) (string, bool)
	// SecretsDir replaces SECRETS_DIR and /run/secrets.
	SecretsDir string
	// ConfigFile is an explicit YAML file; a missing explicit file is an error.
	ConfigFile string
	// DotEnv replaces ./.env.
	DotEnv string
	// Keyring replaces the OS keyring lookup.
	Keyring func(service, user string) (string, error)
}

// Load resolves every key once. Missing required values fail with a
// configuration error naming the key and the locations searched.
func Load(opts LoadOptions) (*Settings, error) {
	r, err := newResolver(opts)
	if err != nil {
		return nil, err
	}
	l := &loader{r: r}

	s := &Settings{
		Credentials: Credentials{
			Account:       l.required("SNOWFLAKE_ACCOUNT"),
			User:          l.required("SNOWFLAKE_USER"),
			PrivateKeyPEM: l.required("SNOWFLAKE_PRIVATE_KEY"),
			Passphrase:    l.optional("SNOWFLAKE_PRIVATE_KEY_PASSPHRASE", ""),
		},
		Database: l.required("SNOWFLAKE_DATABASE"),
		Schema:   l.required("SNOWFLAKE_SCHEMA"),
		Bulk: Binding{
			Role:      l.required("SNOWFLAKE_ROLE"),
			Warehouse: l.required("SNOWFLAKE_WAREHOUSE"),
		},
		Streaming: Binding{
			Role:      l.optional("SNOWFLAKE_STREAMING_ROLE", ""),
			Warehouse: l.optional("SNOWFLAKE_STREAMING_WAREHOUSE", ""),
		},
		Dataset:            Dataset(strings.ToLower(l.optional("LOAD_DATASET", string(DatasetCustomers)))),
		PeopleTable:        l.optional("PEOPLE_TABLE", "people"),
		NumberOfCustomers:  l.integer("NUMBER_OF_CUSTOMERS", 100, 0),
		CustomerFileFormat: l.optional("CUSTOMER_FILE_FORMAT", "customer_json_format"),
		PeopleFileFormat:   l.optional("PEOPLE_FILE_FORMAT", "people_csv_format"),
		Orders: OrderSettings{
			ConnectionString: l.optional("KAFKA_CONNECTION_STRING", ""),
			Topic:            l.optional("KAFKA_TOPIC", ""),
			ConsumerGroup:    l.optional("KAFKA_CONSUMER_GROUP", "flakeload-orders"),
			ToProduce:        l.integer("ORDERS_TO_PRODUCE", 100, 0),
			Producers:        l.integer("ORDER_PRODUCERS", 2, 1),
			BatchSize:        l.integer("ORDER_BATCH_SIZE", 50, 1),
			ToConsume:        l.integer("ORDERS_TO_CONSUME", 100, 0),
			Table:            l.optional("ORDERS_TABLE", "orders"),
			FileFormat:       l.optional("ORDERS_FILE_FORMAT", "order_json_format"),
		},
		Log: LogSettings{
			Level: strings.ToUpper(l.optional("LOG_LEVEL", "INFO")),
			File:  l.optional("LOG_FILE", ""),
		},
	}

	switch s.Dataset {
	case DatasetCustomers:
		s.CustomerTable = l.required("CUSTOMER_TABLE")
	case DatasetPeople:
		s.CustomerTable = l.optional("CUSTOMER_TABLE", "")
	default:
		l.fail(errors.ConfigInvalid("LOAD_DATASET", fmt.Sprintf("%q is not one of customers, people", s.Dataset)))
	}

	if s.Streaming.Configured() && s.Streaming.Warehouse == "" {
		l.fail(errors.ConfigMissing("SNOWFLAKE_STREAMING_WAREHOUSE", r.searched("SNOWFLAKE_STREAMING_WAREHOUSE")...).
			WithContext("reason", "SNOWFLAKE_STREAMING_ROLE is set"))
	}

	switch s.Log.Level {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		l.fail(errors.ConfigInvalid("LOG_LEVEL", fmt.Sprintf("%q is not one of DEBUG, INFO, WARN, ERROR", s.Log.Level)))
	}

	s.Locales = l.locales("CUSTOMER_LOCALES")

	if l.err != nil {
		return nil, l.err
	}

	key, err := keypair.Parse([]byte(s.Credentials.PrivateKeyPEM), s.Credentials.Passphrase)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePrivateKey, "SNOWFLAKE_PRIVATE_KEY could not be decoded").
			WithContext("key", "SNOWFLAKE_PRIVATE_KEY").
			WithContext("source", r.sources["SNOWFLAKE_PRIVATE_KEY"])
	}
	s.Credentials.PrivateKey = key
	if s.Credentials.KeyFingerprint, err = keypair.Fingerprint(key); err != nil {
		return nil, err
	}

	s.Sources = r.sources
	return s, nil
}

// RequireOrders checks the keys only the orders commands need.
func (s *Settings) RequireOrders() error {
	if s.Orders.ConnectionString == "" {
		return errors.ConfigMissing("KAFKA_CONNECTION_STRING", "env KAFKA_CONNECTION_STRING", "env KAFKA_CONNECTION_STRING_FILE")
	}
	if s.Orders.Topic == "" {
		return errors.ConfigMissing("KAFKA_TOPIC", "env KAFKA_TOPIC", "env KAFKA_TOPIC_FILE")
	}
	return nil
}

// OrdersBinding is the binding the orders consumer loads with: the
// streaming binding when configured, the bulk binding otherwise.
func (s *Settings) OrdersBinding() Binding {
	if s.Streaming.Configured() {
		return s.Streaming
	}
	return s.Bulk
}

// Redacted returns a copy with secrets masked, safe to print.
func (s *Settings) Redacted() Settings {
	out := *s
	out.Credentials.PrivateKey = nil
	if out.Credentials.PrivateKeyPEM != "" {
		out.Credentials.PrivateKeyPEM = redactedValue
	}
	if out.Credentials.Passphrase != "" {
		out.Credentials.Passphrase = redactedValue
	}
	if out.Orders.ConnectionString != "" {
		out.Orders.ConnectionString = redactConnectionString(out.Orders.ConnectionString)
	}
	out.Locales = append([]records.Locale(nil), s.Locales...)
	out.Sources = make(map[string]string, len(s.Sources))
	for k, v := range s.Sources {
		out.Sources[k] = v
	}
	return out
}

// redactConnectionString keeps the endpoint and masks every key value.
func redactConnectionString(cs string) string {
	parts := strings.Split(cs, ";")
	for i, p := range parts {
		name, _, ok := strings.Cut(p, "=")
		if ok && !strings.EqualFold(name, "Endpoint") {
			parts[i] = name + "=" + redactedValue
		}
	}
	return strings.Join(parts, ";")
}

// loader collects the first error so Load reads every key before failing.
type loader struct {
	r   *resolver
	err error
}

func (l *loader) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

func (l *loader) required(key string) string {
	v, ok, err := l.r.get(key)
	if err != nil {
		l.fail(err)
		return ""
	}
	if !ok {
		l.fail(errors.ConfigMissing(key, l.r.searched(key)...))
		return ""
	}
	return strings.TrimSpace(v)
}

func (l *loader) optional(key, def string) string {
	v, ok, err := l.r.get(key)
	if err != nil {
		l.fail(err)
		return def
	}
	if !ok {
		l.r.sources[key] = sourceDefault
		return def
	}
	return strings.TrimSpace(v)
}

func (l *loader) integer(key string, def, floor int) int {
	raw := l.optional(key, strconv.Itoa(def))
	n, err := strconv.Atoi(raw)
	if err != nil {
		l.fail(errors.ConfigInvalid(key, fmt.Sprintf("%q is not an integer", raw)))
		return def
	}
	if n < floor {
		l.fail(errors.ConfigInvalid(key, fmt.Sprintf("%d is below the minimum %d", n, floor)))
		return def
	}
	return n
}

func (l *loader) locales(key string) []records.Locale {
	raw := l.optional(key, "")
	if raw == "" {
		return records.SupportedLocales()
	}

	var out []records.Locale
	for _, code := range strings.Split(raw, ",") {
		if strings.TrimSpace(code) == "" {
			continue
		}
		loc, err := records.ParseLocale(code)
		if err != nil {
			l.fail(errors.Wrap(err, errors.ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration value %s", key)).
				WithContext("key", key))
			return nil
		}
		out = append(out, loc)
	}
	if len(out) == 0 {
		return records.SupportedLocales()
	}
	return out
}
