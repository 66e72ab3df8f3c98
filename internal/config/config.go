package config

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config настройки сервиса, читаются viper из файла app.env либо из
// переменных окружения
type Config struct {
	AppName  string `mapstructure:"APP_NAME"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Kafka: пустой список брокеров выключает публикацию событий
	KafkaBrokers     string `mapstructure:"KAFKA_BROKERS"`
	OrderEventsTopic string `mapstructure:"ORDER_EVENTS_TOPIC"`

	MetricsNamespace string `mapstructure:"METRICS_NAMESPACE"`
}

// LoadConfig читает конфигурацию из файла или переменных окружения
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	viper.SetDefault("APP_NAME", "medmarket")
	viper.SetDefault("HTTP_ADDR", ":9091")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("ORDER_EVENTS_TOPIC", "order.events")
	viper.SetDefault("METRICS_NAMESPACE", "medmarket")

	if err = viper.ReadInConfig(); err == nil {
		log.Info().Str("file", viper.ConfigFileUsed()).Msg("Using config file")
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
		log.Info().Msg("No config file found, using environment variables and defaults.")
	} else {
		log.Error().Err(err).Msg("Error reading config file")
		return
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	err = viper.Unmarshal(&config)
	return
}
