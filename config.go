package mqadapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
)

// Config configures an Adapter. Fields with an envconfig tag can be
// populated from the environment via LoadConfigFromEnv; the rest
// (SessionProvider, Logger, Codec, MetricsRegisterer) are Go-level
// injection points and are never read from the environment, keeping
// config parsing a host concern (spec §9).
type Config struct {
	// Adapter is this process's namespace-free identity. New rejects an empty
	// value; nothing else reads it. Namespace is what actually prefixes
	// queue/topic names.
	Adapter string `envconfig:"mq_adapter" required:"true"`
	// Namespace prefixes every queue/topic name before FQN translation
	// (spec §3).
	Namespace string `envconfig:"mq_namespace"`
	// ReplyQueuePrefix prefixes the ephemeral per-process reply queue and
	// any auto-created event queues.
	ReplyQueuePrefix string `envconfig:"mq_reply_queue_prefix" default:"reply-"`

	WorkerPoolMinThreads int `envconfig:"mq_worker_pool_min_threads" default:"1"`
	WorkerPoolMaxThreads int `envconfig:"mq_worker_pool_max_threads" default:"16"`
	WorkerPoolMaxBacklog int `envconfig:"mq_worker_pool_max_backlog" default:"16"`

	AWSRegion          string `envconfig:"mq_aws_region"`
	AWSAccessKeyID     string `envconfig:"mq_aws_access_key_id"`
	AWSSecretAccessKey string `envconfig:"mq_aws_secret_access_key"`
	AWSSQSEndpoint     string `envconfig:"mq_aws_sqs_endpoint"`
	AWSSNSEndpoint     string `envconfig:"mq_aws_sns_endpoint"`
	AWSKMSMasterKeyID  string `envconfig:"mq_aws_sqs_sns_kms_master_key_id"`

	// AWSSQSReadTimeout is the long-poll WaitTimeSeconds for every Consumer.
	AWSSQSReadTimeout int `envconfig:"mq_aws_sqs_read_timeout" default:"20"`

	// AWSSQSNackVisibilityTimeout is the visibility timeout, in seconds, a
	// Consumer sets on a message it NACKs, so QSVC redelivers it quickly
	// instead of waiting out the queue's default visibility timeout.
	AWSSQSNackVisibilityTimeout int `envconfig:"mq_aws_sqs_nack_visibility_timeout" default:"1"`

	// AWSSQSCrossAccountMapping is "name:account,name2:account2", mapping
	// ORIGINAL (pre-FQN) queue names to the AWS account that owns them.
	AWSSQSCrossAccountMapping string `envconfig:"mq_aws_sqs_cross_account_mapping"`

	// DefaultQueryTimeout is used by Query when CallOptions.Timeout is zero.
	DefaultQueryTimeout int `envconfig:"mq_default_query_timeout" default:"15"`

	// SessionProvider overrides AWS session construction; NewSession is used
	// if nil.
	SessionProvider SessionProviderFunc
	// Logger defaults to NewDefaultLogger (zap) if nil.
	Logger Logger
	// Codec defaults to NewJSONCodec (goccy/go-json) if nil.
	Codec Codec
	// MetricsRegisterer receives the adapter's prometheus metrics; nil
	// disables metrics registration (a nil-safe *Metrics is still built).
	MetricsRegisterer prometheus.Registerer
}

// LoadConfigFromEnv populates a Config from the process environment using
// the mq_* keys, leaving the Go-level injection fields unset.
func LoadConfigFromEnv() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, ErrConfig.withDetail("load from environment").Context(err)
	}
	return c, nil
}

func (c Config) readTimeout() time.Duration {
	if c.AWSSQSReadTimeout <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.AWSSQSReadTimeout) * time.Second
}

func (c Config) nackVisibility() time.Duration {
	if c.AWSSQSNackVisibilityTimeout <= 0 {
		return time.Second
	}
	return time.Duration(c.AWSSQSNackVisibilityTimeout) * time.Second
}

func (c Config) defaultQueryTimeout() time.Duration {
	if c.DefaultQueryTimeout <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.DefaultQueryTimeout) * time.Second
}

func (c Config) replyQueuePrefix() string {
	if c.ReplyQueuePrefix == "" {
		return "reply-"
	}
	return c.ReplyQueuePrefix
}

// parseCrossAccountMapping parses "name:account,name2:account2" into a map
// keyed by the ORIGINAL queue name.
func (c Config) parseCrossAccountMapping() (map[string]string, error) {
	m := map[string]string{}
	raw := strings.TrimSpace(c.AWSSQSCrossAccountMapping)
	if raw == "" {
		return m, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, ErrConfig.withDetail(fmt.Sprintf("invalid cross account mapping entry %q", pair))
		}
		m[parts[0]] = parts[1]
	}
	return m, nil
}
