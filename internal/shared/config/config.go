package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	ctopics "github.com/radieske/bet-client-sync/pkg/contracts/topics"
)

// Config centraliza variáveis de ambiente e parâmetros de execução dos binários
// Inclui API remota, cache, transportes opcionais (Redis/Kafka) e portas
type Config struct {
	Env         string // "local", "dev", "prod"
	ServiceName string // ex: "bet-client", "api-stub"
	LogLevel    string // vazio = default do ambiente

	// API remota (gateway)
	APIBaseURL         string
	APIToken           string
	HTTPTimeout        time.Duration
	SportsDataPrefixes []string // paths da fonte primária de dados esportivos

	// Cache store
	FetchTimeout       time.Duration
	CacheIdleTTL       time.Duration
	CachePruneInterval time.Duration

	// Redis: fan-out de invalidação entre instâncias (vazio = desligado)
	RedisAddr                string
	RedisInvalidationChannel string

	// Kafka: eventos de liquidação (vazio = desligado)
	KafkaBrokers      string // "a:9092,b:9092"
	TopicBetConfirmed string
	KafkaGroupID      string

	// Usuário autenticado cujos eventos interessam a esta instância
	UserID string

	// Portas do serviço atual
	HTTPPort    string // WebSocket/live view ou API stub
	MetricsPort string // Porta exclusiva para /metrics e /healthz

	// Stub: quantidade de requisições de dados esportivos antes de responder 429
	StubQuotaLimit int
}

// Load carrega a configuração do bet-client
func Load() Config { return LoadFor("bet-client") }

// LoadFor carrega variáveis de ambiente (e .env, se existir) e define defaults.
// SERVICE_NAME sobrescreve defaultService; as portas seguem o serviço resolvido.
func LoadFor(defaultService string) Config {
	_ = godotenv.Load() // .env é opcional

	svc := getEnv("SERVICE_NAME", defaultService)
	env := getEnv("ENV", "local")

	cfg := Config{
		Env:         env,
		ServiceName: svc,
		LogLevel:    getEnv("LOG_LEVEL", ""),

		APIBaseURL:         getEnv("API_BASE_URL", "http://localhost:8090"),
		APIToken:           getEnv("API_TOKEN", ""),
		HTTPTimeout:        getDuration("HTTP_TIMEOUT", 5*time.Second),
		SportsDataPrefixes: getList("SPORTS_DATA_PREFIXES", []string{"/sports/"}),

		FetchTimeout:       getDuration("CACHE_FETCH_TIMEOUT", 10*time.Second),
		CacheIdleTTL:       getDuration("CACHE_IDLE_TTL", 5*time.Minute),
		CachePruneInterval: getDuration("CACHE_PRUNE_INTERVAL", time.Minute),

		RedisAddr:                getEnv("REDIS_ADDR", ""),
		RedisInvalidationChannel: getEnv("REDIS_INVALIDATION_CHANNEL", ctopics.CacheInvalidation),

		KafkaBrokers:      getEnv("KAFKA_BROKERS", ""),
		TopicBetConfirmed: getEnv("KAFKA_TOPIC_BET_CONFIRMED", ctopics.BetConfirmed),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "bet-client"),

		UserID: getEnv("USER_ID", ""),

		StubQuotaLimit: getInt("STUB_QUOTA_LIMIT", 500),
	}

	// Define portas padrão para cada binário
	switch svc {
	case "api-stub":
		cfg.HTTPPort = getEnv("HTTP_PORT_STUB", "8090")
		cfg.MetricsPort = getEnv("METRICS_PORT_STUB", "9091")
	default:
		cfg.HTTPPort = getEnv("HTTP_PORT", "8085")
		cfg.MetricsPort = getEnv("METRICS_PORT", "9095")
	}

	return cfg
}

// getEnv retorna o valor da variável de ambiente ou o default
func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getList lê uma lista separada por vírgula, ignorando itens vazios
func getList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
