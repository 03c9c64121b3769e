package service_test

import (
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/service"
	"github.com/APTrust/swordv3/testdata"
	"github.com/APTrust/swordv3/util/logger"
	"github.com/APTrust/swordv3/util/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"os"
	"sync"
	"testing"
)

func openTestDB(t *testing.T) (*storage.BoltDB, func()) {
	tempFile, err := ioutil.TempFile("", "registry_test")
	require.Nil(t, err)
	tempFile.Close()
	db, err := storage.NewBoltDB(tempFile.Name())
	require.Nil(t, err)
	return db, func() {
		db.Close()
		os.Remove(tempFile.Name())
	}
}

func testKey() *[32]byte {
	config := &models.Config{}
	key, _ := config.CredentialsKey()
	return key
}

func newTestRegistry(db *storage.BoltDB) *service.Registry {
	return service.NewRegistry(db, testKey(), logger.DiscardLogger("registry_test"))
}

func TestRegistrySaveAndGet(t *testing.T) {
	db, cleanup := openTestDB(t)
	defer cleanup()
	registry := newTestRegistry(db)

	svc := testdata.MakeService(7, "", constants.AuthBasic)
	svc.Enabled = false
	svc.StatusMessage = "old failure"
	require.Nil(t, registry.Save(svc))

	restored, err := registry.GetByURL(7, svc.URL)
	require.Nil(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, svc.Name, restored.Name)
	assert.Equal(t, svc.Credential, restored.Credential)
	// Saving re-enables.
	assert.True(t, restored.Enabled)
	assert.Equal(t, "", restored.StatusMessage)

	// Lookups trim the URL. Wrong context finds nothing.
	restored, err = registry.GetByURL(7, "  "+svc.URL+" ")
	require.Nil(t, err)
	assert.NotNil(t, restored)
	restored, err = registry.GetByURL(8, svc.URL)
	require.Nil(t, err)
	assert.Nil(t, restored)
}

func TestRegistryCredentialsAreEncrypted(t *testing.T) {
	db, cleanup := openTestDB(t)
	defer cleanup()
	registry := newTestRegistry(db)

	svc := testdata.MakeService(1, "", constants.AuthAPIKey)
	svc.Credential.APIKey = "very-secret-api-key"
	require.Nil(t, registry.Save(svc))

	data, err := ioutil.ReadFile(db.FilePath())
	require.Nil(t, err)
	assert.NotContains(t, string(data), "very-secret-api-key")

	// A registry with a different key cannot read it.
	otherKey := &[32]byte{}
	other := service.NewRegistry(db, otherKey, logger.DiscardLogger("registry_test"))
	_, err = other.GetByURL(1, svc.URL)
	assert.NotNil(t, err)
}

func TestRegistryDisable(t *testing.T) {
	db, cleanup := openTestDB(t)
	defer cleanup()
	registry := newTestRegistry(db)

	svc := testdata.MakeService(3, "", constants.AuthAPIKey)
	require.Nil(t, registry.Save(svc))

	changed, err := registry.Disable(3, svc.URL, "Authentication failed")
	require.Nil(t, err)
	assert.True(t, changed)
	restored, _ := registry.GetByURL(3, svc.URL)
	assert.False(t, restored.Enabled)
	assert.Equal(t, "Authentication failed", restored.StatusMessage)
	assert.Equal(t, svc.Credential, restored.Credential)

	// Disabling again keeps the reason staff were notified about.
	changed, err = registry.Disable(3, svc.URL, "Still broken")
	require.Nil(t, err)
	assert.False(t, changed)
	restored, _ = registry.GetByURL(3, svc.URL)
	assert.False(t, restored.Enabled)
	assert.Equal(t, "Authentication failed", restored.StatusMessage)

	_, err = registry.Disable(3, "https://nowhere.example.com", "x")
	assert.NotNil(t, err)
}

func TestRegistryConcurrentDisables(t *testing.T) {
	db, cleanup := openTestDB(t)
	defer cleanup()
	registry := newTestRegistry(db)

	urls := make([]string, 10)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://repo%d.example.com/service", i)
		require.Nil(t, registry.Save(testdata.MakeService(5, urls[i], constants.AuthAPIKey)))
	}
	var wg sync.WaitGroup
	for _, url := range urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			_, err := registry.Disable(5, url, "failed: "+url)
			assert.Nil(t, err)
		}(url)
	}
	wg.Wait()

	all, err := registry.List(5)
	require.Nil(t, err)
	require.Equal(t, 10, len(all))
	for _, svc := range all {
		assert.False(t, svc.Enabled, svc.URL)
		assert.Equal(t, "failed: "+svc.URL, svc.StatusMessage)
	}
	enabled, err := registry.ListEnabled(5)
	require.Nil(t, err)
	assert.Empty(t, enabled)
}

func TestRegistryListEnabled(t *testing.T) {
	db, cleanup := openTestDB(t)
	defer cleanup()
	registry := newTestRegistry(db)

	a := testdata.MakeService(1, "https://a.example.com/service", constants.AuthAPIKey)
	b := testdata.MakeService(1, "https://b.example.com/service", constants.AuthBasic)
	c := testdata.MakeService(12, "https://c.example.com/service", constants.AuthAPIKey)
	for _, svc := range []*models.Service{a, b, c} {
		require.Nil(t, registry.Save(svc))
	}
	_, err := registry.Disable(1, a.URL, "broken")
	require.Nil(t, err)

	enabled, err := registry.ListEnabled(1)
	require.Nil(t, err)
	require.Equal(t, 1, len(enabled))
	assert.Equal(t, b.URL, enabled[0].URL)

	first, err := registry.FirstEnabled(1)
	require.Nil(t, err)
	assert.Equal(t, b.URL, first.URL)

	// Context 1 must not pick up context 12's services.
	all, err := registry.List(1)
	require.Nil(t, err)
	assert.Equal(t, 2, len(all))

	none, err := registry.FirstEnabled(99)
	require.Nil(t, err)
	assert.Nil(t, none)
}
