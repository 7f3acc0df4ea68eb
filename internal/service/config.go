package service

import (
	"os"
	"strconv"

	"gopkg.in/ini.v1"
)

// Config holds the resolver service's settings: how it listens, which
// queue/object-store backends back it, and the defaults it falls back to
// when a ResolutionParams request leaves a field unset.
type Config struct {
	HTTPAddr string

	QueueBackend string
	QueueFile    string
	RedisURL     string
	RedisKey     string
	KafkaBrokers string
	KafkaTopic   string

	DefaultRepoID string

	ResultRegistryURL      string
	ResultRegistryRepo     string
	ResultRegistryUsername string
	ResultRegistryPassword string

	WorkerToken       string
	ControlPlaneURL   string
	ControlPlaneToken string

	ResolvePoolSize      int
	PollIntervalSec      int
	HeartbeatIntervalSec int
}

func fromEnv() Config {
	return Config{
		HTTPAddr:               getenv("RESOLVER_HTTP_ADDR", ":9000"),
		QueueBackend:           getenv("QUEUE_BACKEND", "file"),
		QueueFile:              getenv("QUEUE_FILE", "/tmp/wheel-resolver/jobs.json"),
		RedisURL:               getenv("REDIS_URL", ""),
		RedisKey:               getenv("REDIS_KEY", "wheel-resolver:queue"),
		KafkaBrokers:           getenv("KAFKA_BROKERS", ""),
		KafkaTopic:             getenv("KAFKA_TOPIC", "wheel-resolver.jobs"),
		DefaultRepoID:          getenv("DEFAULT_REPO_ID", "ephemeral"),
		ResultRegistryURL:      getenv("RESULT_REGISTRY_URL", ""),
		ResultRegistryRepo:     getenv("RESULT_REGISTRY_REPO", "wheel-resolver-results"),
		ResultRegistryUsername: getenv("RESULT_REGISTRY_USERNAME", ""),
		ResultRegistryPassword: getenv("RESULT_REGISTRY_PASSWORD", ""),
		WorkerToken:            getenv("WORKER_TOKEN", ""),
		ControlPlaneURL:        getenv("CONTROL_PLANE_URL", ""),
		ControlPlaneToken:      getenv("CONTROL_PLANE_TOKEN", ""),
		ResolvePoolSize:        getenvInt("RESOLVE_POOL_SIZE", 4),
		PollIntervalSec:        getenvInt("POLL_INTERVAL_SEC", 5),
		HeartbeatIntervalSec:   getenvInt("HEARTBEAT_INTERVAL_SEC", 15),
	}
}

// overlayFromFile reads an optional INI config file (CONFIG_FILE) and
// applies any keys it sets on top of cfg's env-derived defaults, letting
// an operator check a single file into a deploy instead of threading
// every knob through the environment.
func overlayFromFile(cfg Config) Config {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		return cfg
	}
	file, err := ini.Load(path)
	if err != nil {
		return cfg
	}
	sec := file.Section("resolver")
	if v := sec.Key("http_addr").String(); v != "" {
		cfg.HTTPAddr = v
	}
	if v := sec.Key("queue_backend").String(); v != "" {
		cfg.QueueBackend = v
	}
	if v := sec.Key("redis_url").String(); v != "" {
		cfg.RedisURL = v
	}
	if v := sec.Key("kafka_brokers").String(); v != "" {
		cfg.KafkaBrokers = v
	}
	if v := sec.Key("default_repo_id").String(); v != "" {
		cfg.DefaultRepoID = v
	}
	if v := sec.Key("result_registry_url").String(); v != "" {
		cfg.ResultRegistryURL = v
	}
	if v := sec.Key("result_registry_repo").String(); v != "" {
		cfg.ResultRegistryRepo = v
	}
	if n, err := sec.Key("resolve_pool_size").Int(); err == nil && n > 0 {
		cfg.ResolvePoolSize = n
	}
	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
