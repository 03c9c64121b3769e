package testutil

import (
	"github.com/nsqio/go-nsq"
	"sync"
	"time"
)

// NSQTestDelegate is a struct used in unit tests to capture
// NSQ messages and actions. The interface we're mocking is
// the MessageDelegate interface defined here:
// https://github.com/nsqio/go-nsq/blob/master/delegates.go#L35
//
// Operation is the last thing done to the message. Operations
// lists everything done to it, in order.
type NSQTestDelegate struct {
	Message    *nsq.Message
	Delay      time.Duration
	Backoff    bool
	Operation  string
	Operations []string
	mutex      sync.Mutex
}

// NewNSQTestDelegate returns a pointer to a new NSQTestDelegate.
func NewNSQTestDelegate() *NSQTestDelegate {
	return &NSQTestDelegate{Operations: make([]string, 0)}
}

// OnFinish receives the Finish() call from an NSQ message.
func (delegate *NSQTestDelegate) OnFinish(message *nsq.Message) {
	delegate.record(message, "finish")
}

// OnRequeue receives the Requeue() call from an NSQ message.
func (delegate *NSQTestDelegate) OnRequeue(message *nsq.Message, delay time.Duration, backoff bool) {
	delegate.mutex.Lock()
	delegate.Delay = delay
	delegate.Backoff = backoff
	delegate.mutex.Unlock()
	delegate.record(message, "requeue")
}

// OnTouch receives the Touch() call from an NSQ message.
func (delegate *NSQTestDelegate) OnTouch(message *nsq.Message) {
	delegate.record(message, "touch")
}

// LastOperation returns Operation under the delegate's lock.
func (delegate *NSQTestDelegate) LastOperation() string {
	delegate.mutex.Lock()
	defer delegate.mutex.Unlock()
	return delegate.Operation
}

func (delegate *NSQTestDelegate) record(message *nsq.Message, operation string) {
	delegate.mutex.Lock()
	defer delegate.mutex.Unlock()
	delegate.Message = message
	delegate.Operation = operation
	delegate.Operations = append(delegate.Operations, operation)
}
