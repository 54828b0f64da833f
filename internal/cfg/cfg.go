package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

// Config adds wardwatch-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	DatabaseURL           string
	SlackWebhookURL       string
	KafkaBrokers          string
	KafkaTopic            string
	KafkaGroupID          string
	RuleEngineURL         string
	PollSeconds           int
	AcknowledgeActors     string
	ReasonCatalogPath     string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API requests")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for day-close notifications")
	fs.StringVar(&c.KafkaBrokers, "kafka-brokers", "", "comma-separated Kafka broker addresses for snapshot ingest (empty = disabled)")
	fs.StringVar(&c.KafkaTopic, "kafka-topic", "rule-evaluations", "Kafka topic carrying rule-engine snapshots")
	fs.StringVar(&c.KafkaGroupID, "kafka-group-id", "wardwatch", "Kafka consumer group ID")
	fs.StringVar(&c.RuleEngineURL, "rule-engine-url", "", "rule engine snapshot endpoint to poll (empty = push ingest only)")
	fs.IntVar(&c.PollSeconds, "poll-seconds", 20, "snapshot poll interval in seconds when rule-engine-url is set (5..300)")
	fs.StringVar(&c.AcknowledgeActors, "acknowledge-actors", "", "comma-separated actor IDs granted the acknowledge capability")
	fs.StringVar(&c.ReasonCatalogPath, "reason-catalog", "", "path to a JSON deferral reason catalog (empty = built-in defaults)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Bearer token is required, ack commands mutate clinical state
	if c.APIToken == "" {
		errs = append(errs, errors.New("API_TOKEN is required"))
	}

	// Kafka topic and group are only meaningful with brokers configured
	if c.KafkaBrokers != "" {
		if c.KafkaTopic == "" {
			errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
		}
		if c.KafkaGroupID == "" {
			errs = append(errs, errors.New("KAFKA_GROUP_ID is required when KAFKA_BROKERS is set"))
		}
	}

	// Poll interval bounds only apply when polling is enabled
	if c.RuleEngineURL != "" && (c.PollSeconds < 5 || c.PollSeconds > 300) {
		errs = append(errs, fmt.Errorf("invalid POLL_SECONDS %d (must be 5..300)", c.PollSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// BrokerList splits KafkaBrokers into addresses, dropping empties.
func (c *Config) BrokerList() []string {
	return splitList(c.KafkaBrokers)
}

// ActorList splits AcknowledgeActors into actor IDs, dropping empties.
func (c *Config) ActorList() []string {
	return splitList(c.AcknowledgeActors)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
