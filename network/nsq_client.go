package network

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/nsqio/nsq/nsqd"
	"io/ioutil"
	"net/http"
)

// NSQStats contains info about the status of NSQ and its topics
// and queues. This info comes from a GET call to the /stats endpoint.
type NSQStats struct {
	StatusCode int          `json:"status_code"`
	StatusText string       `json:"status_txt"`
	Data       NSQStatsData `json:"data"`
}

// NSQStats data contains the important info returned by a call
// to NSQ's /stats endpoint, including the number of items in each
// topic and queue.
type NSQStatsData struct {
	Version string            `json:"version"`
	Health  string            `json:"health"`
	Topics  []nsqd.TopicStats `json:"topics"`
}

// Depth returns the number of messages in topic that are queued,
// in flight or deferred, across all of its channels.
func (stats *NSQStats) Depth(topic string) int64 {
	for _, topicStats := range stats.Data.Topics {
		if topicStats.TopicName != topic {
			continue
		}
		depth := topicStats.Depth
		for _, channel := range topicStats.Channels {
			depth += channel.Depth + int64(channel.InFlightCount) + int64(channel.DeferredCount)
		}
		return depth
	}
	return 0
}

type NSQClient struct {
	URL string
}

// Returns a new NSQ client that will connect to the NSQ server
// and the specified url. The URL is typically available through
// Config.NsqdHttpAddress, and usually ends with :4151. This is
// the URL to which we post items we want to queue, and from
// which our workers read.
//
// Note that this client provides write access to queue, so we can
// add things. It does not provide read access. The workers do the
// reading.
func NewNSQClient(url string) *NSQClient {
	return &NSQClient{URL: url}
}

// Enqueue posts the JSON serialization of body to topic. Deposit
// and poll topics carry models.DepositRequest; the notify topic
// carries models.Notification.
func (client *NSQClient) Enqueue(topic string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("Cannot serialize message for topic %s: %v", topic, err)
	}
	url := fmt.Sprintf("%s/put?topic=%s", client.URL, topic)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("Nsqd returned an error when queuing data: %v", err)
	}
	if resp == nil {
		return fmt.Errorf("No response from nsqd at '%s'. Is it running?", url)
	}

	// nsqd sends a simple OK. We have to read the response body,
	// or the connection will hang open forever.
	respBody, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != 200 {
		bodyText := "[no response body]"
		if len(respBody) > 0 {
			bodyText = string(respBody)
		}
		return fmt.Errorf("nsqd returned status code %d when attempting to queue data. "+
			"Response body: %s", resp.StatusCode, bodyText)
	}
	return nil
}

// GetStats returns the stats nsqd reports for all topics. The
// summary endpoint uses these to report queue depth.
func (client *NSQClient) GetStats() (*NSQStats, error) {
	url := fmt.Sprintf("%s/stats?format=json", client.URL)
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	body, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("NSQ returned status code %d, body: %s",
			resp.StatusCode, body)
	}
	stats := &NSQStats{}
	err = json.Unmarshal(body, stats)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
