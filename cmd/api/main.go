package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/meshcard/internal/adapter/actor"
	"github.com/berfenger/meshcard/internal/config"
	"github.com/berfenger/meshcard/internal/core/actor"
	"github.com/berfenger/meshcard/internal/hass"
	"github.com/berfenger/meshcard/internal/server"
	"github.com/berfenger/meshcard/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The server has 5 seconds to finish the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	var mqttProv actor.MQTTActorProvider
	if cfg.MQTT.Enable {
		mqttProv = mqttActorProvider(cfg, logger)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, hassActorProvider(cfg, logger), mqttProv, logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => MESHCARD_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("MESHCARD_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("meshcard")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = parseLogLevel(viper.GetString("log_level"))

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var logLevels = map[string]zapcore.Level{
	"trace": zap.DebugLevel,
	"debug": zap.DebugLevel,
	"info":  zap.InfoLevel,
	"warn":  zap.WarnLevel,
	"error": zap.ErrorLevel,
	"fatal": zap.FatalLevel,
}

func parseLogLevel(level string) zapcore.Level {
	if l, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l
	}
	return zap.InfoLevel
}

func hassActorProvider(cfg *config.Config, logger *zap.Logger) actor.HassActorProvider {
	return func(cardActor *pactor.PID) *adactor.HassActor {
		return adactor.NewHassActor(cfg, hass.DialSession, cardActor, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(eventStream *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, eventStream, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("device_id", "")
	viper.SetDefault("hass.url", "")
	viper.SetDefault("hass.token", "")
	viper.SetDefault("hass.request_timeout_millis", 10000)
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "meshcard")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("card.refresh_interval_millis", 60000)
	viper.SetDefault("card.render_width", 44)
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
}

func safePrintConfig(cfg config.Config) {
	cfg.Hass.Token = "*redacted*"
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
