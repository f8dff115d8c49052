package cli

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/relaycast/relaycast-go/config"
	"github.com/relaycast/relaycast-go/version"
	"github.com/urfave/cli/v2"
)

type cliOption func(*cli.App) error

type customOptionsFactory = func() ([]cli.Flag, error)

func WithCLIName(name string) cliOption {
	return func(app *cli.App) error {
		app.Name = name
		return nil
	}
}

func WithCLIVersion(str string) cliOption {
	return func(app *cli.App) error {
		app.Version = str
		return nil
	}
}

func WithCLIUsageHeader(desc string) cliOption {
	return func(app *cli.App) error {
		app.Usage = desc
		return nil
	}
}

func WithCLIWriter(w io.Writer) cliOption {
	return func(app *cli.App) error {
		app.Writer = w
		return nil
	}
}

func WithCLICustomOptions(factory customOptionsFactory) cliOption {
	return func(app *cli.App) error {
		custom, err := factory()
		if err != nil {
			return err
		}

		app.Flags = append(app.Flags, custom...)
		return nil
	}
}

// NewConfigFromCLI reads config from os.Args. It returns config, error (if any) and a bool value
// indicating that the usage message, version or config was shown, no further action required.
//
// Values are resolved in order: defaults, config file, env vars, flags.
func NewConfigFromCLI(args []string, opts ...cliOption) (*config.Config, error, bool) {
	c := config.NewConfig()

	c.ConfigFilePath = configPathFromArgs(args)

	if err := c.LoadFromFile(); err != nil {
		return &config.Config{}, err, false
	}

	var mtags, metricsFilter, presets string
	var printConfig bool
	var helpOrVersionWereShown = true

	postgresMaxConns := int(c.Store.Postgres.MaxConns)

	// Print raw version without prefix
	cli.VersionPrinter = func(cCtx *cli.Context) {
		_, _ = fmt.Fprintf(cCtx.App.Writer, "%v\n", cCtx.App.Version)
	}

	flags := []cli.Flag{}
	flags = append(flags, serverCLIFlags(&c)...)
	flags = append(flags, sslCLIFlags(&c)...)
	flags = append(flags, ingressCLIFlags(&c)...)
	flags = append(flags, brokerCLIFlags(&c)...)
	flags = append(flags, amqpCLIFlags(&c)...)
	flags = append(flags, natsCLIFlags(&c)...)
	flags = append(flags, redisCLIFlags(&c)...)
	flags = append(flags, storeCLIFlags(&c, &postgresMaxConns)...)
	flags = append(flags, logCLIFlags(&c)...)
	flags = append(flags, metricsCLIFlags(&c, &metricsFilter, &mtags)...)
	flags = append(flags, statsdCLIFlags(&c)...)
	flags = append(flags, miscCLIFlags(&c, &presets, &printConfig)...)

	app := &cli.App{
		Name:            "relaycast",
		Version:         version.Version(),
		Usage:           "Relaycast, multi-tenant pub/sub gateway",
		HideHelpCommand: true,
		Flags:           flags,
		Action: func(nc *cli.Context) error {
			helpOrVersionWereShown = false
			return nil
		},
	}

	for _, o := range opts {
		err := o(app)
		if err != nil {
			return &config.Config{}, err, false
		}
	}

	err := app.Run(args)
	if err != nil {
		return &config.Config{}, err, false
	}

	// helpOrVersionWereShown = false indicates that the default action has been run.
	// true means that help/version message was displayed.
	//
	// Unfortunately, cli module does not support another way of detecting if or which
	// command was run.
	if helpOrVersionWereShown {
		return &config.Config{}, nil, true
	}

	c.Store.Postgres.MaxConns = int32(postgresMaxConns) // nolint:gosec

	if mtags != "" {
		c.Metrics.Tags = parseTags(mtags)
	}

	if metricsFilter != "" {
		c.Metrics.LogFilter = strings.Split(metricsFilter, ",")
	}

	if presets != "" {
		c.UserPresets = strings.Split(presets, ",")
	}

	if printConfig {
		fmt.Fprint(app.Writer, c.ToToml())
		return &c, nil, true
	}

	return &c, nil, false
}

// Flags ordering issue: https://github.com/urfave/cli/pull/1430

const (
	serverCategoryDescription  = "RELAYCAST SERVER:"
	sslCategoryDescription     = "SSL:"
	ingressCategoryDescription = "INGRESS:"
	brokerCategoryDescription  = "BROKER:"
	amqpCategoryDescription    = "AMQP:"
	natsCategoryDescription    = "NATS:"
	redisCategoryDescription   = "REDIS:"
	storeCategoryDescription   = "STORE:"
	logCategoryDescription     = "LOG:"
	metricsCategoryDescription = "METRICS:"
	statsdCategoryDescription  = "STATSD:"
	miscCategoryDescription    = "MISC:"

	envPrefix = "RELAYCAST_"

	configPathFlag = "config-path"
)

var (
	splitFlagName = regexp.MustCompile("[_-]")
)

// serverCLIFlags returns base server flags
func serverCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(serverCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "host",
			Value:       c.Server.Host,
			Usage:       "Server host",
			Destination: &c.Server.Host,
		},

		&cli.IntFlag{
			Name:        "port",
			Value:       c.Server.Port,
			Usage:       "Server port",
			EnvVars:     []string{envPrefix + "PORT", "PORT"},
			Destination: &c.Server.Port,
		},

		&cli.StringFlag{
			Name:        "health-path",
			Value:       c.Server.HealthPath,
			Usage:       "HTTP health endpoint path",
			Destination: &c.Server.HealthPath,
		},

		&cli.StringFlag{
			Name:        "allowed_origins",
			Value:       c.Server.AllowedOrigins,
			Usage:       "Comma-separated list of origins allowed to call the ingress endpoint (e.g., example.com,*.example.com)",
			Destination: &c.Server.AllowedOrigins,
		},

		&cli.StringFlag{
			Name:        "id",
			Value:       c.ID,
			Usage:       "Instance identifier used in shard queue names (generated when empty)",
			Destination: &c.ID,
		},

		&cli.IntFlag{
			Name:        "shutdown_timeout",
			Usage:       "Graceful shutdown timeout (in seconds)",
			Value:       c.ShutdownTimeout,
			Destination: &c.ShutdownTimeout,
		},

		&cli.IntFlag{
			Name:        "registry_shards",
			Usage:       "The number of local fan-out shards",
			Value:       c.RegistryShards,
			Destination: &c.RegistryShards,
			Hidden:      true,
		},
	})
}

// sslCLIFlags returns SSL flags
func sslCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(sslCategoryDescription, []cli.Flag{
		&cli.PathFlag{
			Name:        "ssl_cert",
			Usage:       "SSL certificate path",
			Value:       c.Server.SSL.CertPath,
			Destination: &c.Server.SSL.CertPath,
		},

		&cli.PathFlag{
			Name:        "ssl_key",
			Usage:       "SSL private key path",
			Value:       c.Server.SSL.KeyPath,
			Destination: &c.Server.SSL.KeyPath,
		},
	})
}

// ingressCLIFlags returns signed publish endpoint flags
func ingressCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(ingressCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "ingress_path",
			Usage:       "Signed publish endpoint path",
			Value:       c.Ingress.Path,
			Destination: &c.Ingress.Path,
		},

		&cli.Int64Flag{
			Name:        "ingress_max_body_size",
			Usage:       "Max signed publish request body size (in bytes)",
			Value:       c.Ingress.MaxBodySize,
			Destination: &c.Ingress.MaxBodySize,
		},

		&cli.IntFlag{
			Name:        "ingress_timestamp_tolerance",
			Usage:       "Allowed difference between the event timestamp and the receipt time (in seconds)",
			Value:       c.Ingress.TimestampTolerance,
			Destination: &c.Ingress.TimestampTolerance,
		},
	})
}

// brokerCLIFlags returns broker related flags
func brokerCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(brokerCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "broker",
			Usage:       "Broker adapter to use. Available options: amqp, nats, memory",
			Value:       c.Broker.Adapter,
			Destination: &c.Broker.Adapter,
		},

		&cli.StringFlag{
			Name:        "exchange",
			Usage:       "Topic exchange to publish room messages to",
			Value:       c.Broker.Exchange,
			Destination: &c.Broker.Exchange,
		},

		&cli.IntFlag{
			Name:        "queue_count",
			Usage:       "The number of shard queues per instance",
			Value:       c.Broker.QueueCount,
			Destination: &c.Broker.QueueCount,
		},

		&cli.IntFlag{
			Name:        "bind_retry_interval",
			Usage:       "How often to retry failed bind/unbind operations (in seconds)",
			Value:       c.Broker.RetryInterval,
			Destination: &c.Broker.RetryInterval,
		},

		&cli.IntFlag{
			Name:        "bind_timeout",
			Usage:       "Bind/unbind operation timeout (in seconds)",
			Value:       c.BindTimeout,
			Destination: &c.BindTimeout,
		},
	})
}

// amqpCLIFlags returns AMQP broker flags
func amqpCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(amqpCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "amqp_url",
			Usage:       "AMQP broker URL",
			Value:       c.Broker.AMQP.URL,
			EnvVars:     []string{envPrefix + "AMQP_URL", "AMQP_URL"},
			Destination: &c.Broker.AMQP.URL,
		},

		&cli.IntFlag{
			Name:        "amqp_queue_expires",
			Usage:       "Remove unused shard queues after this period (in seconds, 0 to keep forever)",
			Value:       c.Broker.AMQP.QueueExpires,
			Destination: &c.Broker.AMQP.QueueExpires,
		},

		&cli.IntFlag{
			Name:        "amqp_prefetch",
			Usage:       "Max number of unacknowledged deliveries per shard queue consumer",
			Value:       c.Broker.AMQP.Prefetch,
			Destination: &c.Broker.AMQP.Prefetch,
		},

		&cli.IntFlag{
			Name:        "amqp_max_reconnect_attempts",
			Usage:       "Max number of reconnect attempts",
			Value:       c.Broker.AMQP.MaxReconnectAttempts,
			Destination: &c.Broker.AMQP.MaxReconnectAttempts,
		},
	})
}

// natsCLIFlags returns NATS broker flags
func natsCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(natsCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "nats_servers",
			Usage:       "Comma separated list of NATS cluster servers",
			Value:       c.Broker.NATS.Servers,
			Destination: &c.Broker.NATS.Servers,
		},

		&cli.StringFlag{
			Name:        "nats_subject_prefix",
			Usage:       "NATS subject prefix (the exchange name by default)",
			Value:       c.Broker.NATS.SubjectPrefix,
			Destination: &c.Broker.NATS.SubjectPrefix,
		},

		&cli.BoolFlag{
			Name:        "nats_dont_randomize_servers",
			Usage:       "Pass this option to disable NATS servers randomization during (re-)connect",
			Value:       c.Broker.NATS.DontRandomizeServers,
			Destination: &c.Broker.NATS.DontRandomizeServers,
		},
	})
}

// redisCLIFlags returns Redis store flags
func redisCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(redisCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "redis_url",
			Usage:       "Redis url",
			Value:       c.Redis.URL,
			EnvVars:     []string{envPrefix + "REDIS_URL", "REDIS_URL"},
			Destination: &c.Redis.URL,
		},

		&cli.StringFlag{
			Name:        "redis_key_prefix",
			Usage:       "Prefix for every key written by the Redis store",
			Value:       c.Redis.KeyPrefix,
			Destination: &c.Redis.KeyPrefix,
		},

		&cli.StringFlag{
			Name:        "redis_sentinels",
			Usage:       "Comma separated list of sentinel hosts, format: 'hostname:port,..'",
			Value:       c.Redis.Sentinels,
			Destination: &c.Redis.Sentinels,
		},

		&cli.IntFlag{
			Name:        "redis_keepalive_interval",
			Usage:       "Interval to periodically ping Redis to make sure it's alive",
			Value:       c.Redis.KeepalivePingInterval,
			Destination: &c.Redis.KeepalivePingInterval,
		},

		&cli.BoolFlag{
			Name:        "redis_tls_verify",
			Usage:       "Verify Redis server TLS certificate (only if URL protocol is rediss://)",
			Value:       c.Redis.TLSVerify,
			Destination: &c.Redis.TLSVerify,
		},

		&cli.BoolFlag{
			Name:        "redis_disable_cache",
			Usage:       "Disable client-side caching",
			Value:       c.Redis.DisableCache,
			Destination: &c.Redis.DisableCache,
		},
	})
}

// storeCLIFlags returns presence, history and credentials store flags
func storeCLIFlags(c *config.Config, postgresMaxConns *int) []cli.Flag {
	return withDefaults(storeCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "store",
			Usage:       "Presence, history and subscriptions store adapter. Available options: redis, memory",
			Value:       c.Store.Adapter,
			Destination: &c.Store.Adapter,
		},

		&cli.StringFlag{
			Name:        "credentials",
			Usage:       "API keys store adapter. Available options: postgres, memory",
			Value:       c.Store.Credentials,
			Destination: &c.Store.Credentials,
		},

		&cli.IntFlag{
			Name:        "history_limit",
			Usage:       "Max number of messages kept per room",
			Value:       c.Store.HistoryLimit,
			Destination: &c.Store.HistoryLimit,
		},

		&cli.Int64Flag{
			Name:        "history_ttl",
			Usage:       "Room history expiration (in seconds)",
			Value:       c.Store.HistoryTTL,
			Destination: &c.Store.HistoryTTL,
		},

		&cli.IntFlag{
			Name:        "metrics_stream_limit",
			Usage:       "Max length of the membership events stream",
			Value:       c.Store.MetricsStreamLimit,
			Destination: &c.Store.MetricsStreamLimit,
		},

		&cli.StringFlag{
			Name:        "postgres_url",
			Usage:       "Postgres connection string of the API keys database",
			Value:       c.Store.Postgres.URL,
			EnvVars:     []string{envPrefix + "POSTGRES_URL", "DATABASE_URL"},
			Destination: &c.Store.Postgres.URL,
		},

		&cli.IntFlag{
			Name:        "postgres_max_conns",
			Usage:       "Max number of pooled Postgres connections",
			Value:       *postgresMaxConns,
			Destination: postgresMaxConns,
		},

		&cli.StringFlag{
			Name:        "postgres_table",
			Usage:       "API keys table name",
			Value:       c.Store.Postgres.Table,
			Destination: &c.Store.Postgres.Table,
		},
	})
}

func logCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(logCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "log_level",
			Usage:       "Set logging level (debug/info/warn/error/fatal)",
			Value:       c.Log.LogLevel,
			Destination: &c.Log.LogLevel,
		},

		&cli.StringFlag{
			Name:        "log_format",
			Usage:       "Set logging format (text/json)",
			Value:       c.Log.LogFormat,
			Destination: &c.Log.LogFormat,
		},

		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "Enable debug mode (more verbose logging)",
			Value:       c.Log.Debug,
			Destination: &c.Log.Debug,
		},
	})
}

// metricsCLIFlags returns CLI flags for metrics
func metricsCLIFlags(c *config.Config, filter *string, mtags *string) []cli.Flag {
	return withDefaults(metricsCategoryDescription, []cli.Flag{
		&cli.BoolFlag{
			Name:        "metrics_log",
			Usage:       "Enable metrics logging (with info level)",
			Value:       c.Metrics.Log,
			Destination: &c.Metrics.Log,
		},

		&cli.IntFlag{
			Name:        "metrics_rotate_interval",
			Usage:       "Specify how often flush metrics to writers (logs, statsd) (in seconds)",
			Value:       c.Metrics.RotateInterval,
			Destination: &c.Metrics.RotateInterval,
		},

		&cli.StringFlag{
			Name:        "metrics_log_filter",
			Usage:       "Specify list of metrics to print to log (to reduce the output)",
			Destination: filter,
		},

		&cli.StringFlag{
			Name:        "metrics_http",
			Usage:       "Prometheus endpoint path on the main server (empty to disable)",
			Value:       c.Metrics.HTTP,
			Destination: &c.Metrics.HTTP,
		},

		&cli.StringFlag{
			Name:        "metrics_tags",
			Usage:       "Comma-separated list of default (global) tags to add to every metric",
			Destination: mtags,
		},
	})
}

func statsdCLIFlags(c *config.Config) []cli.Flag {
	return withDefaults(statsdCategoryDescription, []cli.Flag{
		&cli.StringFlag{
			Name:        "statsd_host",
			Usage:       "Server host for metrics sent to statsd server in the format <host>:<port>",
			Value:       c.Metrics.Statsd.Host,
			Destination: &c.Metrics.Statsd.Host,
		},

		&cli.StringFlag{
			Name:        "statsd_prefix",
			Usage:       "Statsd metrics prefix",
			Value:       c.Metrics.Statsd.Prefix,
			Destination: &c.Metrics.Statsd.Prefix,
		},

		&cli.IntFlag{
			Name:        "statsd_max_packet_size",
			Usage:       "Statsd client maximum UDP packet size",
			Value:       c.Metrics.Statsd.MaxPacketSize,
			Destination: &c.Metrics.Statsd.MaxPacketSize,
		},

		&cli.StringFlag{
			Name:        "statsd_tags_format",
			Usage:       `One of "datadog", "influxdb", or "graphite"`,
			Value:       c.Metrics.Statsd.TagFormat,
			Destination: &c.Metrics.Statsd.TagFormat,
		},
	})
}

// miscCLIFlags returns uncategorized flags
func miscCLIFlags(c *config.Config, presets *string, printConfig *bool) []cli.Flag {
	return withDefaults(miscCategoryDescription, []cli.Flag{
		&cli.PathFlag{
			Name:        configPathFlag,
			Usage:       "Path to the TOML configuration file",
			Value:       c.ConfigFilePath,
			Destination: &c.ConfigFilePath,
		},

		&cli.BoolFlag{
			Name:        "print-config",
			Usage:       "Print the resolved configuration in TOML format and exit",
			Destination: printConfig,
		},

		&cli.StringFlag{
			Name:        "presets",
			Usage:       "Configuration presets, comma-separated (none, fly, heroku, memory). Inferred automatically",
			Destination: presets,
		},
	})
}

// configPathFromArgs looks up the config file path before the flags are parsed,
// so the file provides defaults for the flags
func configPathFromArgs(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")

		if !strings.HasPrefix(arg, "-") || name != configPathFlag {
			continue
		}

		if hasValue {
			return value
		}

		if i+1 < len(args) {
			return args[i+1]
		}
	}

	return os.Getenv(nameToEnvVarName(configPathFlag))
}

// withDefaults sets category and env var name a flags passed as the arument
func withDefaults(category string, flags []cli.Flag) []cli.Flag {
	for _, f := range flags {
		switch v := f.(type) {
		case *cli.IntFlag:
			v.Category = category
			if len(v.EnvVars) == 0 {
				v.EnvVars = []string{nameToEnvVarName(v.Name)}
			}
		case *cli.Int64Flag:
			v.Category = category
			if len(v.EnvVars) == 0 {
				v.EnvVars = []string{nameToEnvVarName(v.Name)}
			}
		case *cli.BoolFlag:
			v.Category = category
			if len(v.EnvVars) == 0 {
				v.EnvVars = []string{nameToEnvVarName(v.Name)}
			}
		case *cli.StringFlag:
			v.Category = category
			if len(v.EnvVars) == 0 {
				v.EnvVars = []string{nameToEnvVarName(v.Name)}
			}
		case *cli.PathFlag:
			v.Category = category
			if len(v.EnvVars) == 0 {
				v.EnvVars = []string{nameToEnvVarName(v.Name)}
			}
		}
	}
	return flags
}

// nameToEnvVarName converts flag name to env variable
func nameToEnvVarName(name string) string {
	split := splitFlagName.Split(name, -1)
	set := []string{}

	for i := range split {
		set = append(set, strings.ToUpper(split[i]))
	}

	return envPrefix + strings.Join(set, "_")
}

// parseTags parses "key:value" pairs, entries without a value are skipped
func parseTags(str string) map[string]string {
	tags := strings.Split(str, ",")

	res := make(map[string]string, len(tags))

	for _, v := range tags {
		key, value, ok := strings.Cut(v, ":")

		if !ok {
			continue
		}

		res[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return res
}
