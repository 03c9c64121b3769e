package testutil

import (
	"github.com/APTrust/swordv3/testdata"
	"github.com/APTrust/swordv3/swordv3"
	"github.com/nsqio/go-nsq"
	"time"
)

// MakeNsqMessage returns an NSQ message with the specified body,
// as if it had been delivered for the first time.
func MakeNsqMessage(body string) *nsq.Message {
	messageId := nsq.MessageID{'1', '2', '3', '4', '5', '6', '7', '8', '9', '0', 'a', 's', 'd', 'f', 'g', 'h'}
	message := nsq.NewMessage(messageId, []byte(body))
	message.Attempts = 1
	message.Timestamp = time.Now().UnixNano()
	return message
}

// LoadStatusFixture parses a status document from testdata/json_objects.
func LoadStatusFixture(name string) (*swordv3.StatusDocument, error) {
	data, err := testdata.LoadJSON(name)
	if err != nil {
		return nil, err
	}
	return swordv3.ParseStatusDocument(data)
}
