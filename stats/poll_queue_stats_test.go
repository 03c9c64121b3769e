package stats_test

import (
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/stats"
	"github.com/APTrust/swordv3/util/fileutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"os"
	"testing"
)

func makeRequest(publicationId int64) *models.DepositRequest {
	return &models.DepositRequest{
		PublicationId: publicationId,
		SubmissionId:  publicationId + 1000,
		ContextId:     1,
		ServiceURL:    "https://repo.example.com/sword/service-document",
	}
}

// Create a stats object with 5 requests, no errors and no warnings.
func makePollQueueStats() *stats.PollQueueStats {
	_stats := stats.NewPollQueueStats()
	for i := int64(1); i <= 5; i++ {
		_stats.AddRequest(constants.TopicProgress, makeRequest(i))
	}
	return _stats
}

func TestNewPollQueueStats(t *testing.T) {
	_stats := stats.NewPollQueueStats()
	require.NotNil(t, _stats)
	assert.NotNil(t, _stats.Queued)
	assert.NotNil(t, _stats.Skipped)
	assert.NotNil(t, _stats.Errors)
	assert.NotNil(t, _stats.Warnings)
	assert.Equal(t, 0, _stats.QueuedCount())
}

func TestQueue_AddRequest(t *testing.T) {
	_stats := makePollQueueStats()
	request := makeRequest(99)
	_stats.AddRequest("other_topic", request)
	assert.Equal(t, 6, _stats.QueuedCount())
	list := _stats.Queued["other_topic"]
	require.Equal(t, 1, len(list))
	assert.Equal(t, request, list[0])
}

func TestQueue_FindRequest(t *testing.T) {
	_stats := makePollQueueStats()
	request, topic := _stats.FindRequest(3)
	require.NotNil(t, request)
	assert.Equal(t, int64(3), request.PublicationId)
	assert.Equal(t, constants.TopicProgress, topic)

	request, topic = _stats.FindRequest(333)
	assert.Nil(t, request)
	assert.Empty(t, topic)
}

func TestQueue_AddSkipped(t *testing.T) {
	_stats := makePollQueueStats()
	_stats.AddSkipped(42)
	assert.Equal(t, []int64{42}, _stats.Skipped)
}

func TestQueue_ErrorsAndWarnings(t *testing.T) {
	_stats := makePollQueueStats()
	assert.False(t, _stats.HasErrors())
	assert.False(t, _stats.HasWarnings())
	_stats.AddError("Oopsie!")
	_stats.AddWarning("Uh-oh")
	assert.True(t, _stats.HasErrors())
	assert.True(t, _stats.HasWarnings())
	assert.Equal(t, "Oopsie!", _stats.Errors[len(_stats.Errors)-1])
	assert.Equal(t, "Uh-oh", _stats.Warnings[len(_stats.Warnings)-1])
}

func TestQueue_DumpAndReadFromFile(t *testing.T) {
	_stats := makePollQueueStats()
	_stats.AddSkipped(7)
	tempfile, err := ioutil.TempFile("", "poll_queue_stats_test.json")
	require.Nil(t, err)
	defer os.Remove(tempfile.Name())
	err = _stats.DumpToFile(tempfile.Name())
	require.Nil(t, err)
	assert.True(t, fileutil.FileExists(tempfile.Name()))

	newStats, err := stats.PollQueueStatsLoadFromFile(tempfile.Name())
	require.Nil(t, err)
	assert.Equal(t, 5, len(newStats.Queued[constants.TopicProgress]))
	assert.Equal(t, []int64{7}, newStats.Skipped)
	assert.Equal(t, 0, len(newStats.Errors))
	assert.Equal(t, 0, len(newStats.Warnings))
}

func TestQueue_DumpWillNotOverwrite(t *testing.T) {
	tempfile, err := ioutil.TempFile("", "poll_queue_stats_test.txt")
	require.Nil(t, err)
	defer os.Remove(tempfile.Name())
	err = makePollQueueStats().DumpToFile(tempfile.Name())
	assert.NotNil(t, err)
}
