package models

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/util"
	"github.com/APTrust/swordv3/util/fileutil"
	"github.com/op/go-logging"
	"os"
	"path/filepath"
	"time"
)

// Galley storage backends.
const (
	GalleyStorageLocal = "local"
	GalleyStorageS3    = "s3"
)

// testCredentialsKey is used only when tests are running and
// SWORDV3_CREDENTIALS_KEY is not set.
const testCredentialsKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type WorkerConfig struct {
	// This describes how often the NSQ client should ping
	// the NSQ server to let it know it's still there. The
	// setting must be formatted like so:
	//
	// "800ms" for 800 milliseconds
	// "10s" for ten seconds
	// "1m" for one minute
	HeartbeatInterval string

	// The maximum number of times the worker should try to
	// process a job. Transient errors (connection failures,
	// 5xx responses) cause the job to be requeued until it
	// has been attempted this many times. After that, the
	// service is disabled.
	MaxAttempts uint16

	// Maximum number of jobs a worker will accept from the
	// queue at one time.
	MaxInFlight int

	// If the NSQ server does not hear from a client that a
	// job is complete in this amount of time, the server
	// considers the job to have timed out and re-queues it.
	// The depositor touches the message after each file
	// append, so this only has to cover the largest single
	// file upload.
	MessageTimeout string

	// The name of the NSQ Channel the worker should read from.
	NsqChannel string

	// The name of the NSQ Topic the worker should listen to.
	NsqTopic string

	// This describes how long the NSQ client will wait for
	// a read from the NSQ server before timing out. The format
	// is the same as for HeartbeatInterval.
	ReadTimeout string

	// Number of go routines to start in the worker.
	Workers int

	// This describes how long the NSQ client will wait for
	// a write to the NSQ server to complete before timing out.
	// The format is the same as for HeartbeatInterval.
	WriteTimeout string
}

type Config struct {
	// ActiveConfig is the configuration currently
	// in use.
	ActiveConfig string

	// DatabasePath is the bolt DB file that holds service
	// configurations and publication deposit records.
	DatabasePath string

	// The port number where swordv3_service listens.
	DepositServicePort int

	// Configuration options for swordv3_deposit
	DepositWorker WorkerConfig

	// DigestAlgorithms lists the IANA digest formats we are
	// willing to compute, in the order they appear in the
	// Digest header. Defaults to constants.DefaultDigestAlgorithms.
	DigestAlgorithms []string

	// FilesDirectory is the root of the host application's
	// file store. Galley paths are relative to this.
	FilesDirectory string

	// GalleyStorage is "local" to read galleys from
	// FilesDirectory or "s3" to download them from S3Bucket
	// into StagingDirectory first.
	GalleyStorage string

	// HTTPTimeout bounds every request to a SWORDv3 server,
	// e.g. "30s". A timeout is treated as a connection failure.
	HTTPTimeout string

	// JournalAPIURL is the REST root of the host application,
	// which supplies publication, submission, context and
	// galley snapshots.
	JournalAPIURL string

	// JournalCacheTTL is how long context and user lookups
	// from the journal API are cached, e.g. "5m".
	JournalCacheTTL string

	// LogDirectory is where we'll write our log files.
	LogDirectory string

	// LogLevel is defined in github.com/op/go-logging
	// and should be one of the following:
	// 0 - CRITICAL
	// 1 - ERROR
	// 2 - WARNING
	// 3 - NOTICE
	// 4 - INFO
	// 5 - DEBUG
	LogLevel logging.Level

	// If true, processes will log to STDERR in addition
	// to their standard log files. You really only want
	// to do this in development.
	LogToStderr bool

	// NsqdHttpAddress tells us where to find the NSQ server
	// where we can read from and write to topics and channels.
	// It's typically something like "http://localhost:4151"
	NsqdHttpAddress string

	// NsqLookupd is the full HTTP(S) address of the NSQ Lookup
	// daemon, which is where our worker processes look first to
	// discover where they can find topics and channels. This is
	// typically something like "localhost:4161"
	NsqLookupd string

	// Configuration options for swordv3_progress
	ProgressWorker WorkerConfig

	// RequestsPerSecond limits requests to any single SWORDv3
	// host. Zero means no limit.
	RequestsPerSecond float64

	// S3 settings for galley storage.
	S3Bucket   string
	S3Endpoint string
	S3UseSSL   bool

	// SettingsURLTemplate is formatted with the context path
	// to produce the link in "deposits stopped" notifications.
	SettingsURLTemplate string

	// StagingDirectory holds galley files downloaded from S3
	// while they are being deposited.
	StagingDirectory string
}

// This returns the configuration that the user requested,
// which is specified in the -config flag when we run a
// program from the command line
func LoadConfigFile(pathToConfigFile string) (*Config, error) {
	file, err := fileutil.LoadRelativeFile(pathToConfigFile)
	if err != nil {
		detailedError := fmt.Errorf("Error reading config file '%s': %v\n",
			pathToConfigFile, err)
		return nil, detailedError
	}
	config := &Config{}
	err = json.Unmarshal(file, config)
	if err != nil {
		detailedError := fmt.Errorf("Error parsing JSON from config file '%s': %v",
			pathToConfigFile, err)
		return nil, detailedError
	}
	config.ActiveConfig = pathToConfigFile
	return config, nil
}

// Ensures that the logging, staging and database directories
// exist, creating them if necessary. Returns the absolute path
// the logging directory.
func (config *Config) EnsureLogDirectory() (string, error) {
	config.ExpandFilePaths()
	err := config.createDirectories()
	if err != nil {
		return "", err
	}
	return config.AbsLogDirectory(), nil
}

func (config *Config) AbsLogDirectory() string {
	absLogDir, err := filepath.Abs(config.LogDirectory)
	if err != nil {
		msg := fmt.Sprintf("Cannot get absolute path to log directory. "+
			"config.LogDirectory is set to '%s'", config.LogDirectory)
		panic(msg)
	}
	return absLogDir
}

// EnsureSecrets checks that the settings and environment
// variables the worker processes need are present.
func (config *Config) EnsureSecrets() error {
	if config.JournalAPIURL == "" {
		return fmt.Errorf("JournalAPIURL is missing from config file")
	}
	if os.Getenv("SWORDV3_JOURNAL_API_KEY") == "" {
		return fmt.Errorf("Environment variable SWORDV3_JOURNAL_API_KEY is not set")
	}
	if _, err := config.CredentialsKey(); err != nil {
		return err
	}
	if config.GalleyStorage == GalleyStorageS3 {
		if config.S3Bucket == "" || config.S3Endpoint == "" {
			return fmt.Errorf("S3Bucket and S3Endpoint are required when GalleyStorage is s3")
		}
		if config.GetS3AccessKeyId() == "" {
			return fmt.Errorf("Environment variable SWORDV3_S3_ACCESS_KEY_ID is not set")
		}
		if config.GetS3SecretAccessKey() == "" {
			return fmt.Errorf("Environment variable SWORDV3_S3_SECRET_ACCESS_KEY is not set")
		}
	}
	return nil
}

// Expands ~ file paths to absolute paths.
func (config *Config) ExpandFilePaths() {
	expanded, err := fileutil.ExpandTilde(config.LogDirectory)
	if err == nil {
		config.LogDirectory = expanded
	}
	expanded, err = fileutil.ExpandTilde(config.StagingDirectory)
	if err == nil {
		config.StagingDirectory = expanded
	}
	expanded, err = fileutil.ExpandTilde(config.FilesDirectory)
	if err == nil {
		config.FilesDirectory = expanded
	}
	expanded, err = fileutil.ExpandTilde(config.DatabasePath)
	if err == nil {
		config.DatabasePath = expanded
	}
}

func (config *Config) createDirectories() error {
	if config.LogDirectory == "" {
		return fmt.Errorf("You must define config.LogDirectory")
	}
	if config.StagingDirectory == "" {
		return fmt.Errorf("You must define config.StagingDirectory")
	}
	dirs := []string{config.LogDirectory, config.StagingDirectory}
	if config.DatabasePath != "" {
		dirs = append(dirs, filepath.Dir(config.DatabasePath))
	}
	for _, dir := range dirs {
		if !fileutil.FileExists(dir) {
			err := os.MkdirAll(dir, 0755)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// LocalDigestAlgorithms returns the digest formats this process
// computes, falling back to the defaults when none are configured.
// Unknown names are dropped.
func (config *Config) LocalDigestAlgorithms() []string {
	source := config.DigestAlgorithms
	if len(source) == 0 {
		source = constants.DefaultDigestAlgorithms
	}
	algorithms := make([]string, 0, len(source))
	known := []string{
		constants.DigestSHA512,
		constants.DigestSHA256,
		constants.DigestSHA1,
		constants.DigestMD5,
		constants.DigestADLER32,
		constants.DigestCRC32C,
	}
	for _, name := range source {
		if util.StringListContains(known, name) && !util.StringListContains(algorithms, name) {
			algorithms = append(algorithms, name)
		}
	}
	return algorithms
}

// HTTPTimeoutDuration parses HTTPTimeout, defaulting to 60 seconds.
func (config *Config) HTTPTimeoutDuration() time.Duration {
	return parseDurationOr(config.HTTPTimeout, 60*time.Second)
}

// JournalCacheDuration parses JournalCacheTTL, defaulting to 5 minutes.
func (config *Config) JournalCacheDuration() time.Duration {
	return parseDurationOr(config.JournalCacheTTL, 5*time.Minute)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// SettingsURL returns the URL of the plugin settings page for
// the context whose URL path is contextPath.
func (config *Config) SettingsURL(contextPath string) string {
	if config.SettingsURLTemplate == "" {
		return ""
	}
	return fmt.Sprintf(config.SettingsURLTemplate, contextPath)
}

// CredentialsKey returns the 32-byte key used to encrypt service
// credentials at rest. The key comes from SWORDV3_CREDENTIALS_KEY
// as 64 hex characters. In test context, a fixed key is returned
// if the variable is unset.
func (config *Config) CredentialsKey() (*[32]byte, error) {
	hexKey := os.Getenv("SWORDV3_CREDENTIALS_KEY")
	if hexKey == "" && config.TestsAreRunning() {
		hexKey = testCredentialsKey
	}
	if hexKey == "" {
		return nil, fmt.Errorf("Environment variable SWORDV3_CREDENTIALS_KEY is not set")
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("SWORDV3_CREDENTIALS_KEY must be 64 hex characters")
	}
	key := &[32]byte{}
	copy(key[:], raw)
	return key, nil
}

// TestsAreRunning returns true if we're running unit or integration
// tests; false otherwise.
func (config *Config) TestsAreRunning() bool {
	return flag.Lookup("test.v") != nil
}

// GetJournalAPIKey returns the journal API token from the environment.
func (config *Config) GetJournalAPIKey() string {
	return os.Getenv("SWORDV3_JOURNAL_API_KEY")
}

// GetS3AccessKeyId returns the S3 Access Key ID from the environment,
// or an empty string if the ENV var isn't set. In test context, this
// returns a dummy key id.
func (config *Config) GetS3AccessKeyId() string {
	keyId := os.Getenv("SWORDV3_S3_ACCESS_KEY_ID")
	if keyId == "" && config.TestsAreRunning() {
		keyId = "TestKeyId"
	}
	return keyId
}

// GetS3SecretAccessKey returns the S3 Secret Access Key from the
// environment, or an empty string if the ENV var isn't set. In test
// context, this returns a dummy key.
func (config *Config) GetS3SecretAccessKey() string {
	secretKey := os.Getenv("SWORDV3_S3_SECRET_ACCESS_KEY")
	if secretKey == "" && config.TestsAreRunning() {
		secretKey = "TestSecretKey"
	}
	return secretKey
}
