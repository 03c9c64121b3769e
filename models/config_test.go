package models_test

import (
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigFile(t *testing.T) {
	configFile := filepath.Join("config", "test.json")
	config, err := models.LoadConfigFile(configFile)
	require.Nil(t, err)

	// Spot check a few settings.
	assert.Equal(t, configFile, config.ActiveConfig)
	assert.Equal(t, "http://localhost:4151", config.NsqdHttpAddress)
	assert.Equal(t, "swordv3_deposit", config.DepositWorker.NsqTopic)
	assert.Equal(t, "swordv3_progress", config.ProgressWorker.NsqTopic)
	assert.EqualValues(t, 3, config.DepositWorker.MaxAttempts)
	assert.Equal(t, models.GalleyStorageLocal, config.GalleyStorage)
	assert.Equal(t, 30*time.Second, config.HTTPTimeoutDuration())
	assert.Equal(t, 5*time.Minute, config.JournalCacheDuration())
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := models.LoadConfigFile("config/no_such_file.json")
	require.NotNil(t, err)
	assert.True(t, strings.Contains(err.Error(), "Error reading config file"))
}

func TestEnsureLogDirectory(t *testing.T) {
	tmp, err := os.MkdirTemp("", "swordv3_config_test")
	require.Nil(t, err)
	defer os.RemoveAll(tmp)
	config := &models.Config{
		LogDirectory:     filepath.Join(tmp, "log"),
		StagingDirectory: filepath.Join(tmp, "staging"),
		DatabasePath:     filepath.Join(tmp, "db", "swordv3.db"),
	}
	absPathToLogDir, err := config.EnsureLogDirectory()
	require.Nil(t, err)
	assert.True(t, strings.HasPrefix(absPathToLogDir, "/"))
	assert.DirExists(t, filepath.Join(tmp, "log"))
	assert.DirExists(t, filepath.Join(tmp, "staging"))
	assert.DirExists(t, filepath.Join(tmp, "db"))

	config.StagingDirectory = ""
	_, err = config.EnsureLogDirectory()
	assert.NotNil(t, err)
}

func TestExpandFilePaths(t *testing.T) {
	config := &models.Config{
		LogDirectory:     "~/tmp/log",
		StagingDirectory: "~/tmp/staging",
		FilesDirectory:   "/var/files",
		DatabasePath:     "~/tmp/swordv3.db",
	}
	config.ExpandFilePaths()
	assert.False(t, strings.HasPrefix(config.LogDirectory, "~"))
	assert.False(t, strings.HasPrefix(config.StagingDirectory, "~"))
	assert.False(t, strings.HasPrefix(config.DatabasePath, "~"))
	assert.Equal(t, "/var/files", config.FilesDirectory)
}

func TestEnsureSecrets(t *testing.T) {
	config, err := models.LoadConfigFile(filepath.Join("config", "test.json"))
	require.Nil(t, err)

	apiKey := os.Getenv("SWORDV3_JOURNAL_API_KEY")
	defer os.Setenv("SWORDV3_JOURNAL_API_KEY", apiKey)

	url := config.JournalAPIURL
	config.JournalAPIURL = ""
	err = config.EnsureSecrets()
	assert.Equal(t, "JournalAPIURL is missing from config file", err.Error())

	config.JournalAPIURL = url
	os.Setenv("SWORDV3_JOURNAL_API_KEY", "")
	err = config.EnsureSecrets()
	assert.Equal(t, "Environment variable SWORDV3_JOURNAL_API_KEY is not set", err.Error())

	os.Setenv("SWORDV3_JOURNAL_API_KEY", "Bogus value set by config_test.go")
	assert.Nil(t, config.EnsureSecrets())

	config.GalleyStorage = models.GalleyStorageS3
	config.S3Bucket = ""
	assert.NotNil(t, config.EnsureSecrets())
}

func TestLocalDigestAlgorithms(t *testing.T) {
	config := &models.Config{}
	assert.Equal(t, constants.DefaultDigestAlgorithms, config.LocalDigestAlgorithms())

	config.DigestAlgorithms = []string{"MD5", "bogus", "SHA-256", "MD5"}
	assert.Equal(t, []string{"MD5", "SHA-256"}, config.LocalDigestAlgorithms())
}

func TestCredentialsKey(t *testing.T) {
	saved := os.Getenv("SWORDV3_CREDENTIALS_KEY")
	defer os.Setenv("SWORDV3_CREDENTIALS_KEY", saved)
	config := &models.Config{}

	// Tests get a fixed key when none is set.
	os.Setenv("SWORDV3_CREDENTIALS_KEY", "")
	key, err := config.CredentialsKey()
	require.Nil(t, err)
	assert.EqualValues(t, 0x1f, key[31])

	os.Setenv("SWORDV3_CREDENTIALS_KEY", "abcd")
	_, err = config.CredentialsKey()
	assert.NotNil(t, err)
}

func TestSettingsURL(t *testing.T) {
	config := &models.Config{}
	assert.Equal(t, "", config.SettingsURL("journal"))
	config.SettingsURLTemplate = "https://journals.example.com/%s/settings"
	assert.Equal(t, "https://journals.example.com/journal/settings", config.SettingsURL("journal"))
}

func TestHTTPTimeoutDefaults(t *testing.T) {
	config := &models.Config{HTTPTimeout: "not a duration"}
	assert.Equal(t, 60*time.Second, config.HTTPTimeoutDuration())
}
