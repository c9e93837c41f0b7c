package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		VerdictTopic string   `yaml:"verdict_topic" default:"fusion.verdicts"`
		ReadingTopic string   `yaml:"reading_topic" default:"fusion.readings"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"5s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"sigfusion"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"sigfusion"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Stream struct {
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://stream.binance.com:9443/stream"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"stream"`
	Sources struct {
		WhalesURL      string        `yaml:"whales_url"`
		DerivativesURL string        `yaml:"derivatives_url"`
		SentimentURL   string        `yaml:"sentiment_url" default:"https://api.alternative.me/fng/"`
		MacroURL       string        `yaml:"macro_url"`
		OptionsURL     string        `yaml:"options_url" default:"https://www.deribit.com/api/v2/public"`
		MLServiceURL   string        `yaml:"ml_service_url"`
		Timeout        time.Duration `yaml:"timeout" default:"8s"`
		RetryAttempts  int           `yaml:"retry_attempts" default:"2"`
		CacheTTL       time.Duration `yaml:"cache_ttl" default:"5m"`
	} `yaml:"sources"`
	Backend struct {
		Type         string        `yaml:"type" default:"kafka"` // kafka | clickhouse
		BatchSize    int           `yaml:"batch_size" default:"500"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"2s"`
	} `yaml:"backend"`
	Engine EngineConfig `yaml:"engine"`
	Scanner struct {
		Universe  []string      `yaml:"universe"`
		Interval  time.Duration `yaml:"interval" default:"5m"`
		Consider  int           `yaml:"consider" default:"10"`
		Publish   int           `yaml:"publish" default:"3"`
		QueueName string        `yaml:"queue_name" default:"sigfusion:scan"`
	} `yaml:"scanner"`
}

// EngineConfig carries every tuned constant of the fusion pipeline.
// Values here are calibrated; changing them shifts live behavior, so
// they are config, not code.
type EngineConfig struct {
	Weights map[string]float64 `yaml:"weights"`

	Workers      int           `yaml:"workers" default:"10"`
	RoundTimeout time.Duration `yaml:"round_timeout" default:"12s"`
	VerdictTTL   time.Duration `yaml:"verdict_ttl" default:"10m"`

	Override struct {
		RSIOversold    float64 `yaml:"rsi_oversold" default:"20"`
		RSIOverbought  float64 `yaml:"rsi_overbought" default:"80"`
		StrongRSILow   float64 `yaml:"strong_rsi_low" default:"25"`
		StrongRSIHigh  float64 `yaml:"strong_rsi_high" default:"75"`
		StrongFGLow    float64 `yaml:"strong_fg_low" default:"25"`
		StrongFGHigh   float64 `yaml:"strong_fg_high" default:"75"`
		FlowRatioHigh  float64 `yaml:"flow_ratio_high" default:"10"`
		FlowRatioLow   float64 `yaml:"flow_ratio_low" default:"0.1"`
		MinStrong      int     `yaml:"min_strong" default:"2"`
		NeutralShrink  float64 `yaml:"neutral_shrink" default:"0.5"`
	} `yaml:"override"`

	Correlation struct {
		Leader    string             `yaml:"leader" default:"BTC"`
		Strengths map[string]float64 `yaml:"strengths"`
		TTL       time.Duration      `yaml:"ttl" default:"10m"`
		DeadZone  float64            `yaml:"dead_zone" default:"10"`
		StrongOpp float64            `yaml:"strong_opposite" default:"30"`
	} `yaml:"correlation"`

	Levels struct {
		Lookback     int     `yaml:"lookback" default:"5"`
		TouchTolPct  float64 `yaml:"touch_tolerance_pct" default:"1.0"`
		FallbackPct  float64 `yaml:"fallback_pct" default:"3.0"`
		FallbackEach int     `yaml:"fallback_each" default:"3"`
	} `yaml:"levels"`

	Predictor struct {
		MaxMovePct     float64 `yaml:"max_move_pct" default:"3.5"`
		ResistanceClip float64 `yaml:"resistance_clip" default:"0.995"`
		SupportClip    float64 `yaml:"support_clip" default:"1.005"`
		TargetATRMult  float64 `yaml:"target_atr_mult" default:"1.5"`
		StopATRMult    float64 `yaml:"stop_atr_mult" default:"1.0"`
	} `yaml:"predictor"`

	Ensemble struct {
		RuleWeight    float64 `yaml:"rule_weight" default:"0.7"`
		MLWeight      float64 `yaml:"ml_weight" default:"0.3"`
		CancelBelow   float64 `yaml:"cancel_below" default:"0.4"`
		CautionBelow  float64 `yaml:"caution_below" default:"0.6"`
		StrongAbove   float64 `yaml:"strong_above" default:"0.8"`
	} `yaml:"ensemble"`

	Stability struct {
		Cooldown       time.Duration `yaml:"cooldown" default:"60m"`
		Confirmations  int           `yaml:"confirmations" default:"3"`
		ChangeBypass   float64       `yaml:"change_bypass" default:"0.3"`
		Residency      time.Duration `yaml:"residency" default:"15m"`
		RankMargin     float64       `yaml:"rank_margin" default:"0.10"`
	} `yaml:"stability"`

	Probability struct {
		Base         float64 `yaml:"base" default:"50"`
		ScoreFactor  float64 `yaml:"score_factor" default:"0.12"`
		ConsensusMax float64 `yaml:"consensus_max" default:"12"`
		CoveragePct  float64 `yaml:"coverage_pct" default:"8"`
		SidewaysCap  float64 `yaml:"sideways_cap" default:"58"`
		Floor        float64 `yaml:"floor" default:"50"`
		Ceiling      float64 `yaml:"ceiling" default:"85"`
	} `yaml:"probability"`
}

// DefaultWeights is the calibrated factor weight set. Used when the
// YAML omits engine.weights entirely.
var DefaultWeights = map[string]float64{
	"whales":      0.25,
	"derivatives": 0.20,
	"trend":       0.15,
	"momentum":    0.12,
	"volume":      0.10,
	"adx":         0.05,
	"divergence":  0.05,
	"sentiment":   0.04,
	"macro":       0.03,
	"options":     0.01,
}

// DefaultCorrelationStrengths maps dependents to leader coupling.
var DefaultCorrelationStrengths = map[string]float64{
	"ETH": 0.70,
	"SOL": 0.40,
	"TON": 0.35,
	"XRP": 0.30,
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(c.Engine.Weights) == 0 {
		c.Engine.Weights = DefaultWeights
	}
	if len(c.Engine.Correlation.Strengths) == 0 {
		c.Engine.Correlation.Strengths = DefaultCorrelationStrengths
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Stream.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("ML_SERVICE_URL"); v != "" {
		c.Sources.MLServiceURL = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid. A failure here is
// fatal: the engine refuses to construct on a bad weight table or
// unordered thresholds.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Stream.Symbols) == 0 {
		return fmt.Errorf("stream.symbols cannot be empty")
	}
	return c.Engine.Validate()
}

// Validate checks the engine constant tables.
func (e *EngineConfig) Validate() error {
	sum := 0.0
	for name, w := range e.Weights {
		if w < 0 {
			return fmt.Errorf("engine.weights.%s must be >= 0, got %v", name, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("engine.weights must sum to 1.0, got %v", sum)
	}
	if e.Workers < 1 || e.Workers > 25 {
		return fmt.Errorf("engine.workers must be in [1, 25], got %d", e.Workers)
	}
	if e.Override.RSIOversold >= e.Override.RSIOverbought {
		return fmt.Errorf("engine.override rsi thresholds out of order")
	}
	if e.Override.StrongRSILow >= e.Override.StrongRSIHigh {
		return fmt.Errorf("engine.override strong rsi thresholds out of order")
	}
	if !(e.Ensemble.CancelBelow < e.Ensemble.CautionBelow && e.Ensemble.CautionBelow < e.Ensemble.StrongAbove) {
		return fmt.Errorf("engine.ensemble thresholds must be ordered cancel < caution < strong")
	}
	if w := e.Ensemble.RuleWeight + e.Ensemble.MLWeight; math.Abs(w-1.0) > 1e-9 {
		return fmt.Errorf("engine.ensemble weights must sum to 1.0, got %v", w)
	}
	for sym, s := range e.Correlation.Strengths {
		if s < 0 || s > 1 {
			return fmt.Errorf("engine.correlation.strengths.%s must be in [0, 1], got %v", sym, s)
		}
	}
	if e.Probability.Floor > e.Probability.Ceiling {
		return fmt.Errorf("engine.probability floor above ceiling")
	}
	if e.Stability.Confirmations < 1 {
		return fmt.Errorf("engine.stability.confirmations must be >= 1")
	}
	return nil
}
