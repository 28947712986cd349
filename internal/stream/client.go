// Package stream publishes synthetic orders to a Kafka-compatible broker
// and consumes them back into Snowflake through the bulk loader.
package stream

import (
	"crypto/tls"
	"net/url"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"

	"flakeload/internal/config"
	"flakeload/pkg/errors"
)

const (
	brokerPort = "9093"
	saslUser   = "$ConnectionString"
)

// Broker is the address and SASL PLAIN credentials derived from a
// connection string.
type Broker struct {
	Address  string
	User     string
	Password string
}

// ParseConnectionString reads an Event Hubs style connection string
// ("Endpoint=sb://host/;SharedAccessKeyName=...;SharedAccessKey=...").
// The whole string is the SASL password.
func ParseConnectionString(s string) (Broker, error) {
	var endpoint string
	for _, part := range strings.Split(s, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.EqualFold(name, "Endpoint") {
			endpoint = value
			break
		}
	}
	if endpoint == "" {
		return Broker{}, errors.ConfigInvalid("KAFKA_CONNECTION_STRING", "no Endpoint=sb://<host>/ entry")
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return Broker{}, errors.ConfigInvalid("KAFKA_CONNECTION_STRING", "Endpoint is not a valid sb:// URL")
	}

	return Broker{
		Address:  u.Hostname() + ":" + brokerPort,
		User:     saslUser,
		Password: s,
	}, nil
}

// NewClient builds a TLS + SASL PLAIN franz-go client for the configured
// broker. extra is appended to the base options.
func NewClient(settings config.OrderSettings, extra ...kgo.Opt) (*kgo.Client, error) {
	opts, err := clientOptions(settings)
	if err != nil {
		return nil, err
	}
	client, err := kgo.NewClient(append(opts, extra...)...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStreamFailed, "failed to create Kafka client")
	}
	return client, nil
}

// ProducerOptions route records to the orders topic.
func ProducerOptions(settings config.OrderSettings) []kgo.Opt {
	return []kgo.Opt{
		kgo.DefaultProduceTopic(settings.Topic),
		kgo.ProducerBatchMaxBytes(1 << 20),
	}
}

// ConsumerOptions join the consumer group with manual commits.
func ConsumerOptions(settings config.OrderSettings) []kgo.Opt {
	return []kgo.Opt{
		kgo.ConsumeTopics(settings.Topic),
		kgo.ConsumerGroup(settings.ConsumerGroup),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
}

func clientOptions(settings config.OrderSettings) ([]kgo.Opt, error) {
	broker, err := ParseConnectionString(settings.ConnectionString)
	if err != nil {
		return nil, err
	}
	return []kgo.Opt{
		kgo.SeedBrokers(broker.Address),
		kgo.DialTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}),
		kgo.SASL(plain.Auth{User: broker.User, Pass: broker.Password}.AsMechanism()),
	}, nil
}
