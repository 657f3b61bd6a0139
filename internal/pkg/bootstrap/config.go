// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"log"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config 是整个服务的静态配置。
// 启动时从 yaml 文件加载一次，个别字段允许环境变量覆盖；
// 运行期通过 GetCurrentConfig 读取，不允许业务代码直接读环境变量。
type Config struct {
	App struct {
		// 履约失败升级通知的接收人配置
		Escalation struct {
			EmailRecipients []string `yaml:"email_recipients"`
			MessagingTopic  string   `yaml:"messaging_topic"`
		} `yaml:"escalation"`
		// 单次远程开通调用的超时（秒）
		ProvisionTimeoutSeconds int `yaml:"provision_timeout_seconds"`
		// 定时重试扫描的并发上限（按订单粒度）
		RetrySweepConcurrency int `yaml:"retry_sweep_concurrency"`
	} `yaml:"app"`

	Infra struct {
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers         []string `yaml:"brokers"`
			PaidOrdersTopic string   `yaml:"paid_orders_topic"`
			ConsumerGroup   string   `yaml:"consumer_group"`
		} `yaml:"kafka"`
		Zookeeper struct {
			Servers []string `yaml:"servers"`
		} `yaml:"zookeeper"`
		Marketplace struct {
			BaseURL   string `yaml:"base_url"`
			TokenFile string `yaml:"token_file"`
		} `yaml:"marketplace"`
		Smtp struct {
			Host string `yaml:"host"`
			Port int    `yaml:"port"`
			User string `yaml:"user"`
			Pass string `yaml:"pass"`
			From string `yaml:"from"`
		} `yaml:"smtp"`
	} `yaml:"infra"`
}

var (
	currentConfig *Config
	configOnce    sync.Once
)

// Init 加载配置文件。路径来自 CONFIG_FILE 环境变量，默认 configs/config.yml。
// 加载失败直接 Fatal：没有配置的服务起不来是正确行为。
func Init() {
	configOnce.Do(func() {
		path := getEnv("CONFIG_FILE", "configs/config.yml")
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("FATAL: cannot read config file %s: %v", path, err)
		}

		cfg := defaultConfig()
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Fatalf("FATAL: cannot parse config file %s: %v", path, err)
		}
		applyEnvOverrides(cfg)
		currentConfig = cfg
		log.Printf("Config loaded from %s", path)
	})
}

// GetCurrentConfig 返回当前配置。必须先调用 Init。
func GetCurrentConfig() *Config {
	if currentConfig == nil {
		log.Fatalf("FATAL: bootstrap.Init must be called before GetCurrentConfig")
	}
	return currentConfig
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.App.ProvisionTimeoutSeconds = 60
	cfg.App.RetrySweepConcurrency = 4
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Redis.Addr = "localhost:6379"
	cfg.Infra.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Infra.Kafka.PaidOrdersTopic = "order-paid"
	cfg.Infra.Kafka.ConsumerGroup = "fulfillment-service"
	cfg.App.Escalation.MessagingTopic = "fulfillment-escalations"
	cfg.Infra.Zookeeper.Servers = []string{"localhost:2181"}
	cfg.Infra.Smtp.Port = 587
	return cfg
}

// applyEnvOverrides 允许部署环境覆盖最常变动的几个字段。
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.Infra.Mysql.DSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Infra.Redis.Addr = v
	}
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		cfg.Infra.Jaeger.Endpoint = v
	}
	if v := os.Getenv("MARKETPLACE_BASE_URL"); v != "" {
		cfg.Infra.Marketplace.BaseURL = v
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
