package testutil

import (
	"bufio"
	"encoding/json"
	"fmt"
	"github.com/APTrust/swordv3/models"
	"io"
	"os"
	"strings"
)

// FindRecordInLog returns the last DepositRecord the workers logged
// for publicationId in the JSON log at pathToLogFile.
func FindRecordInLog(pathToLogFile string, publicationId int64) (*models.DepositRecord, error) {
	file, err := os.Open(pathToLogFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	jsonString := findJsonString(file, fmt.Sprintf("publication %d", publicationId))
	if len(jsonString) == 0 {
		return nil, fmt.Errorf("Publication %d not found in %s", publicationId, pathToLogFile)
	}
	record := &models.DepositRecord{}
	err = json.Unmarshal([]byte(jsonString), record)
	return record, err
}

func findJsonString(file io.Reader, label string) string {
	startPrefix := fmt.Sprintf("-------- BEGIN %s ", label)
	endPrefix := fmt.Sprintf("-------- END %s ", label)
	inJson := false
	jsonLines := make([]string, 0)
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		if strings.HasPrefix(line, startPrefix) {
			inJson = true
			// Replace the old with the new because we only
			// want the last known state of this publication.
			jsonLines = make([]string, 0)
			continue
		} else if strings.HasPrefix(line, endPrefix) {
			inJson = false
			continue
		}
		if inJson {
			jsonLines = append(jsonLines, line)
		}
	}
	return strings.Join(jsonLines, "")
}
