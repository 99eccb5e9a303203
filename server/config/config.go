// Package config provides the configuration surface of the crosspost server,
// loadable from command line flags, environment variables and an optional
// yaml config file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "CROSSPOST"

// MysqlConfig defines configs related to MySQL
type MysqlConfig struct {
	Protocol        string
	Address         string
	Username        string
	Password        string
	Database        string
	MaxOpenConns    int `yaml:"max_open_conns"`
	MaxIdleConns    int `yaml:"max_idle_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime"`
}

// S3Config defines configs related to the S3 media store
type S3Config struct {
	Bucket           string
	Prefix           string
	Region           string
	AccessKeyID      string `yaml:"access_key_id"`
	SecretAccessKey  string `yaml:"secret_access_key"`
	StsAssumeRoleArn string `yaml:"sts_assume_role_arn"`
	EndpointURL      string `yaml:"endpoint_url"`
	DisableSSL       bool   `yaml:"disable_ssl"`
	ForceS3PathStyle bool   `yaml:"force_s3_path_style"`
	SignedURLExpiry  time.Duration `yaml:"signed_url_expiry"`
}

// ServerConfig defines configs related to the status HTTP listener
type ServerConfig struct {
	Address string
}

// WorkerConfig defines configs related to the publish worker
type WorkerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	LockDuration time.Duration `yaml:"lock_duration"`
	MaxJobsPerRun int          `yaml:"max_jobs_per_run"`
}

// TikTokConfig defines configs related to the TikTok publisher
type TikTokConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SentryConfig defines configs related to error reporting with Sentry
type SentryConfig struct {
	Dsn string
}

// LoggingConfig defines configs related to logging
type LoggingConfig struct {
	Debug         bool
	JSON          bool
	DisableBanner bool `yaml:"disable_banner"`
}

// CrosspostConfig stores the application configuration. Each subcategory is
// broken up into it's own struct, defined above. When editing any of these
// structs, Manager.addConfigs and Manager.LoadConfig should be updated to
// set and retrieve the configurations as appropriate.
type CrosspostConfig struct {
	Mysql   MysqlConfig
	S3      S3Config
	Server  ServerConfig
	Worker  WorkerConfig
	TikTok  TikTokConfig `yaml:"tiktok"`
	Sentry  SentryConfig
	Logging LoggingConfig
}

// addConfigs adds the configuration keys and default values that will be
// filled into the CrosspostConfig struct
func (man Manager) addConfigs() {
	// MySQL
	man.addConfigString("mysql.protocol", "tcp", "MySQL server communication protocol (tcp,unix,...)")
	man.addConfigString("mysql.address", "localhost:3306", "MySQL server address (host:port)")
	man.addConfigString("mysql.username", "crosspost", "MySQL server username")
	man.addConfigString("mysql.password", "", "MySQL server password (prefer env variable for security)")
	man.addConfigString("mysql.database", "crosspost", "MySQL database name")
	man.addConfigInt("mysql.max_open_conns", 50, "MySQL maximum open connection handles")
	man.addConfigInt("mysql.max_idle_conns", 50, "MySQL maximum idle connection handles")
	man.addConfigInt("mysql.conn_max_lifetime", 0, "MySQL maximum amount of time a connection may be reused")

	// S3 media store
	man.addConfigString("s3.bucket", "", "Bucket where to store attachment media")
	man.addConfigString("s3.prefix", "", "Prefix under which media are stored")
	man.addConfigString("s3.region", "", "AWS Region (if blank region is derived)")
	man.addConfigString("s3.access_key_id", "", "Access Key ID for AWS authentication")
	man.addConfigString("s3.secret_access_key", "", "Secret Access Key for AWS authentication")
	man.addConfigString("s3.sts_assume_role_arn", "", "ARN of role to assume for AWS")
	man.addConfigString("s3.endpoint_url", "", "AWS Service Endpoint to use (leave blank for default service endpoints)")
	man.addConfigBool("s3.disable_ssl", false, "Disable SSL (typically for local testing)")
	man.addConfigBool("s3.force_s3_path_style", false, "Set this to true to force path-style addressing, i.e., `http://s3.amazonaws.com/BUCKET/KEY`")
	man.addConfigDuration("s3.signed_url_expiry", 15*time.Minute, "Expiry of signed media URLs handed to publishers")

	// Server
	man.addConfigString("server.address", "0.0.0.0:8220", "crosspost status listener address (host:port)")

	// Worker
	man.addConfigDuration("worker.poll_interval", 10*time.Second, "Interval at which the publish worker polls for due jobs")
	man.addConfigDuration("worker.lock_duration", 1*time.Minute, "Duration of the worker leader lock")
	man.addConfigInt("worker.max_jobs_per_run", 100, "Maximum number of jobs fetched per worker run")

	// TikTok
	man.addConfigString("tiktok.base_url", "https://open.tiktokapis.com", "Base URL of the TikTok publishing API")
	man.addConfigDuration("tiktok.timeout", 30*time.Second, "Timeout for TikTok publish requests")

	// Sentry
	man.addConfigString("sentry.dsn", "", "DSN for Sentry")

	// Logging
	man.addConfigBool("logging.debug", false, "Enable debug logging")
	man.addConfigBool("logging.json", false, "Log in JSON format")
	man.addConfigBool("logging.disable_banner", false, "Disable startup banner")
}

// LoadConfig will load the config variables into a fully initialized
// CrosspostConfig struct
func (man Manager) LoadConfig() CrosspostConfig {
	man.loadConfigFile()

	return CrosspostConfig{
		Mysql: MysqlConfig{
			Protocol:        man.getConfigString("mysql.protocol"),
			Address:         man.getConfigString("mysql.address"),
			Username:        man.getConfigString("mysql.username"),
			Password:        man.getConfigString("mysql.password"),
			Database:        man.getConfigString("mysql.database"),
			MaxOpenConns:    man.getConfigInt("mysql.max_open_conns"),
			MaxIdleConns:    man.getConfigInt("mysql.max_idle_conns"),
			ConnMaxLifetime: man.getConfigInt("mysql.conn_max_lifetime"),
		},
		S3: S3Config{
			Bucket:           man.getConfigString("s3.bucket"),
			Prefix:           man.getConfigString("s3.prefix"),
			Region:           man.getConfigString("s3.region"),
			AccessKeyID:      man.getConfigString("s3.access_key_id"),
			SecretAccessKey:  man.getConfigString("s3.secret_access_key"),
			StsAssumeRoleArn: man.getConfigString("s3.sts_assume_role_arn"),
			EndpointURL:      man.getConfigString("s3.endpoint_url"),
			DisableSSL:       man.getConfigBool("s3.disable_ssl"),
			ForceS3PathStyle: man.getConfigBool("s3.force_s3_path_style"),
			SignedURLExpiry:  man.getConfigDuration("s3.signed_url_expiry"),
		},
		Server: ServerConfig{
			Address: man.getConfigString("server.address"),
		},
		Worker: WorkerConfig{
			PollInterval:  man.getConfigDuration("worker.poll_interval"),
			LockDuration:  man.getConfigDuration("worker.lock_duration"),
			MaxJobsPerRun: man.getConfigInt("worker.max_jobs_per_run"),
		},
		TikTok: TikTokConfig{
			BaseURL: man.getConfigString("tiktok.base_url"),
			Timeout: man.getConfigDuration("tiktok.timeout"),
		},
		Sentry: SentryConfig{
			Dsn: man.getConfigString("sentry.dsn"),
		},
		Logging: LoggingConfig{
			Debug:         man.getConfigBool("logging.debug"),
			JSON:          man.getConfigBool("logging.json"),
			DisableBanner: man.getConfigBool("logging.disable_banner"),
		},
	}
}

// IsSet determines whether a given config key has been explicitly set by any
// of the configuration sources. If false, the default value is being used.
func (man Manager) IsSet(key string) bool {
	return man.viper.IsSet(key)
}

// envNameFromConfigKey converts a config key into the corresponding
// environment variable name
func envNameFromConfigKey(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.Replace(key, ".", "_", -1))
}

// flagNameFromConfigKey converts a config key into the corresponding flag name
func flagNameFromConfigKey(key string) string {
	return strings.Replace(key, ".", "_", -1)
}

// Manager manages the addition and retrieval of config values for crosspost
// configs. Its only public API method is LoadConfig, which will return the
// populated CrosspostConfig struct.
type Manager struct {
	viper    *viper.Viper
	command  *cobra.Command
	defaults map[string]interface{}
}

// NewManager initializes a Manager wrapping the provided cobra command. All
// config flags will be attached to that command (and inherited by the
// subcommands). Typically this should be called just once, with the root
// command.
func NewManager(command *cobra.Command) Manager {
	man := Manager{
		viper:    viper.New(),
		command:  command,
		defaults: map[string]interface{}{},
	}
	man.addConfigs()
	return man
}

// addDefault will check for duplication, then add a default value to the
// defaults map
func (man Manager) addDefault(key string, defVal interface{}) {
	if _, exists := man.defaults[key]; exists {
		panic("Trying to add duplicate config for key " + key)
	}
	man.defaults[key] = defVal
}

func getFlagUsage(key string, usage string) string {
	return fmt.Sprintf("Env: %s\n\t\t%s", envNameFromConfigKey(key), usage)
}

// getInterfaceVal is a helper function used by the getConfig* functions to
// retrieve the config value as interface{}, which will then be cast to the
// appropriate type by the getConfig* function.
func (man Manager) getInterfaceVal(key string) interface{} {
	interfaceVal := man.viper.Get(key)
	if interfaceVal == nil {
		var ok bool
		interfaceVal, ok = man.defaults[key]
		if !ok {
			panic("Tried to look up default value for nonexistent config option: " + key)
		}
	}
	return interfaceVal
}

// addConfigString adds a string config to the config options
func (man Manager) addConfigString(key, defVal, usage string) {
	man.command.PersistentFlags().String(flagNameFromConfigKey(key), defVal, getFlagUsage(key, usage))
	man.viper.BindPFlag(key, man.command.PersistentFlags().Lookup(flagNameFromConfigKey(key))) //nolint:errcheck
	man.viper.BindEnv(key, envNameFromConfigKey(key))                                          //nolint:errcheck

	// Add default
	man.addDefault(key, defVal)
}

// getConfigString retrieves a string from the loaded config
func (man Manager) getConfigString(key string) string {
	interfaceVal := man.getInterfaceVal(key)
	stringVal, err := cast.ToStringE(interfaceVal)
	if err != nil {
		panic("Unable to cast to string for key " + key + ": " + err.Error())
	}
	return stringVal
}

// addConfigInt adds an int config to the config options
func (man Manager) addConfigInt(key string, defVal int, usage string) {
	man.command.PersistentFlags().Int(flagNameFromConfigKey(key), defVal, getFlagUsage(key, usage))
	man.viper.BindPFlag(key, man.command.PersistentFlags().Lookup(flagNameFromConfigKey(key))) //nolint:errcheck
	man.viper.BindEnv(key, envNameFromConfigKey(key))                                          //nolint:errcheck

	// Add default
	man.addDefault(key, defVal)
}

// getConfigInt retrieves an int from the loaded config
func (man Manager) getConfigInt(key string) int {
	interfaceVal := man.getInterfaceVal(key)
	intVal, err := cast.ToIntE(interfaceVal)
	if err != nil {
		panic("Unable to cast to int for key " + key + ": " + err.Error())
	}
	return intVal
}

// addConfigBool adds a bool config to the config options
func (man Manager) addConfigBool(key string, defVal bool, usage string) {
	man.command.PersistentFlags().Bool(flagNameFromConfigKey(key), defVal, getFlagUsage(key, usage))
	man.viper.BindPFlag(key, man.command.PersistentFlags().Lookup(flagNameFromConfigKey(key))) //nolint:errcheck
	man.viper.BindEnv(key, envNameFromConfigKey(key))                                          //nolint:errcheck

	// Add default
	man.addDefault(key, defVal)
}

// getConfigBool retrieves a bool from the loaded config
func (man Manager) getConfigBool(key string) bool {
	interfaceVal := man.getInterfaceVal(key)
	boolVal, err := cast.ToBoolE(interfaceVal)
	if err != nil {
		panic("Unable to cast to bool for key " + key + ": " + err.Error())
	}
	return boolVal
}

// addConfigDuration adds a duration config to the config options
func (man Manager) addConfigDuration(key string, defVal time.Duration, usage string) {
	man.command.PersistentFlags().Duration(flagNameFromConfigKey(key), defVal, getFlagUsage(key, usage))
	man.viper.BindPFlag(key, man.command.PersistentFlags().Lookup(flagNameFromConfigKey(key))) //nolint:errcheck
	man.viper.BindEnv(key, envNameFromConfigKey(key))                                          //nolint:errcheck

	// Add default
	man.addDefault(key, defVal)
}

// getConfigDuration retrieves a duration from the loaded config
func (man Manager) getConfigDuration(key string) time.Duration {
	interfaceVal := man.getInterfaceVal(key)
	durationVal, err := cast.ToDurationE(interfaceVal)
	if err != nil {
		panic("Unable to cast to duration for key " + key + ": " + err.Error())
	}
	return durationVal
}

// loadConfigFile handles the loading of the config file.
func (man Manager) loadConfigFile() {
	man.viper.SetConfigType("yaml")

	configFile, _ := man.command.PersistentFlags().GetString("config")
	if configFile == "" {
		// No config file set, only use configs from env vars/flags/defaults.
		return
	}

	man.viper.SetConfigFile(configFile)
	err := man.viper.ReadInConfig()
	if err != nil {
		fmt.Println("Error loading config file:", err)
		os.Exit(1)
	}

	fmt.Println("Using config file:", man.viper.ConfigFileUsed())
}

// TestConfig returns a CrosspostConfig populated with sane defaults for use
// in tests.
func TestConfig() CrosspostConfig {
	return CrosspostConfig{
		Server: ServerConfig{
			Address: "localhost:8220",
		},
		Worker: WorkerConfig{
			PollInterval:  10 * time.Second,
			LockDuration:  1 * time.Minute,
			MaxJobsPerRun: 100,
		},
		S3: S3Config{
			SignedURLExpiry: 15 * time.Minute,
		},
		Logging: LoggingConfig{Debug: true, DisableBanner: true},
	}
}
