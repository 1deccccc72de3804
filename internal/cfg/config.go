package cfg

import (
	"fmt"
	"io"

	"github.com/pelletier/go-toml"
)

const (
	DefDockerHubWebhookEndpoint = "/dockerhub-webhook/notify"
	DefDTRWebhookEndpoint       = "/dtr-webhook/notify"
	DefDedupCacheSize           = 1024
)

type Config struct {
	HTTPListenAddr           string `toml:"http_server_listen_addr"`
	HTTPSListenAddr          string `toml:"https_server_listen_addr"`
	HTTPSCertFile            string `toml:"https_ssl_cert_file"`
	HTTPSKeyFile             string `toml:"https_ssl_key_file"`
	DockerHubWebhookEndpoint string `toml:"dockerhub_webhook_endpoint"`
	DTRWebhookEndpoint       string `toml:"dtr_webhook_endpoint"`
	// WebhookToken is compared to the token sent with webhook requests,
	// if it is empty requests are accepted without a token.
	WebhookToken    string `toml:"webhook_token"`
	DTRHost         string `toml:"dtr_host"`
	MetricsEndpoint string `toml:"prometheus_metrics_endpoint"`
	StatusEndpoint  string `toml:"status_endpoint"`
	GithubAPIToken  string `toml:"github_api_token"`
	LogFormat       string `toml:"log_format"`
	LogTimeKey      string `toml:"log_time_key"`
	LogLevel        string `toml:"log_level"`
	DedupCacheSize  int    `toml:"dedup_cache_size"`
	Jobs            []*Job `toml:"job"`
}

// Job is the webhook trigger configuration of a job.
type Job struct {
	Name        string            `toml:"name"`
	EventTypes  []string          `toml:"event_types"`
	FilterQuery string            `toml:"filter_query"`
	Env         map[string]string `toml:"env"`
	Actions     []map[string]any  `toml:"action"`
}

func (r *Config) setDefaults() {
	if r.DockerHubWebhookEndpoint == "" {
		r.DockerHubWebhookEndpoint = DefDockerHubWebhookEndpoint
	}

	if r.DTRWebhookEndpoint == "" {
		r.DTRWebhookEndpoint = DefDTRWebhookEndpoint
	}

	if r.LogFormat == "" {
		r.LogFormat = "logfmt"
	}

	if r.LogTimeKey == "" {
		r.LogTimeKey = "time_iso8601"
	}

	if r.LogLevel == "" {
		r.LogLevel = "info"
	}

	if r.DedupCacheSize == 0 {
		r.DedupCacheSize = DefDedupCacheSize
	}
}

// validate ensures that the http endpoints are distinct, registering the same
// pattern twice at a ServeMux panics.
func (r *Config) validate() error {
	seen := map[string]string{}

	for _, ep := range [...][2]string{
		{"dockerhub_webhook_endpoint", r.DockerHubWebhookEndpoint},
		{"dtr_webhook_endpoint", r.DTRWebhookEndpoint},
		{"prometheus_metrics_endpoint", r.MetricsEndpoint},
		{"status_endpoint", r.StatusEndpoint},
	} {
		if ep[1] == "" {
			continue
		}

		if other, exist := seen[ep[1]]; exist {
			return fmt.Errorf("%s and %s are both set to %q, endpoints must be different", other, ep[0], ep[1])
		}

		seen[ep[1]] = ep[0]
	}

	return nil
}

// Load reads a TOML configuration. Settings that are missing in the
// configuration have their default value.
func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	result.setDefaults()

	if err := result.validate(); err != nil {
		return nil, err
	}

	return &result, nil
}
