package stats

import (
	"encoding/json"
	"fmt"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/util/fileutil"
	"io/ioutil"
	"os"
	"regexp"
)

// PollQueueStats records what swordv3_check_in_progress did.
type PollQueueStats struct {
	// Queued maps topic name to the requests sent to it.
	Queued map[string][]*models.DepositRequest
	// Skipped lists the publications that had no enabled service.
	Skipped  []int64
	Errors   []string
	Warnings []string
}

// NewPollQueueStats creates a new, empty PollQueueStats object.
func NewPollQueueStats() *PollQueueStats {
	return &PollQueueStats{
		Queued:   make(map[string][]*models.DepositRequest),
		Skipped:  make([]int64, 0),
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}
}

// PollQueueStatsLoadFromFile loads PollQueueStats from a JSON file.
func PollQueueStatsLoadFromFile(pathToFile string) (*PollQueueStats, error) {
	file, err := ioutil.ReadFile(pathToFile)
	if err != nil {
		detailedError := fmt.Errorf("Error reading file '%s': %v\n",
			pathToFile, err)
		return nil, detailedError
	}
	_stats := &PollQueueStats{}
	err = json.Unmarshal(file, _stats)
	if err != nil {
		detailedError := fmt.Errorf("Error parsing JSON from file '%s': %v",
			pathToFile, err)
		return nil, detailedError
	}
	return _stats, nil
}

// DumpToFile dumps a JSON representation of this object to a file at the specified
// path. This will overwrite the existing file, if the existing file has
// a .json extension. See also PollQueueStatsLoadFromFile.
func (stats *PollQueueStats) DumpToFile(pathToFile string) error {
	// Matches .json, or tempfile with random ending, like .json43272
	fileNameLooksSafe, err := regexp.MatchString("\\.json\\d*$", pathToFile)
	if err != nil {
		return fmt.Errorf("DumpToFile(): path '%s'?? : %v", pathToFile, err)
	}
	if fileutil.FileExists(pathToFile) && !fileNameLooksSafe {
		return fmt.Errorf("DumpToFile() will not overwrite existing file "+
			"'%s' because that might be dangerous. Give your output file a .json "+
			"extension to be safe.", pathToFile)
	}

	jsonData, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}

	outputFile, err := os.Create(pathToFile)
	if err != nil {
		return err
	}
	defer outputFile.Close()
	_, err = outputFile.Write(jsonData)
	return err
}

// AddRequest records that a poll request was sent to topic.
func (stats *PollQueueStats) AddRequest(topic string, request *models.DepositRequest) {
	if stats.Queued[topic] == nil {
		stats.Queued[topic] = make([]*models.DepositRequest, 0)
	}
	stats.Queued[topic] = append(stats.Queued[topic], request)
}

// FindRequest returns the queued request for publicationId, and the
// topic it went to, or nil and an empty string.
func (stats *PollQueueStats) FindRequest(publicationId int64) (*models.DepositRequest, string) {
	for topic, requests := range stats.Queued {
		for _, request := range requests {
			if request.PublicationId == publicationId {
				return request, topic
			}
		}
	}
	return nil, ""
}

// QueuedCount returns the number of requests sent to all topics.
func (stats *PollQueueStats) QueuedCount() int {
	count := 0
	for _, requests := range stats.Queued {
		count += len(requests)
	}
	return count
}

func (stats *PollQueueStats) AddSkipped(publicationId int64) {
	stats.Skipped = append(stats.Skipped, publicationId)
}

// Adds an error message to the stats.
func (stats *PollQueueStats) AddError(message string) {
	stats.Errors = append(stats.Errors, message)
}

// Returns true if this object contains any errors
func (stats *PollQueueStats) HasErrors() bool {
	return len(stats.Errors) > 0
}

// Adds a warning to the stats.
func (stats *PollQueueStats) AddWarning(message string) {
	stats.Warnings = append(stats.Warnings, message)
}

// Returns true if this object contains any warnings
func (stats *PollQueueStats) HasWarnings() bool {
	return len(stats.Warnings) > 0
}
