package network

import (
	"crypto/md5"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// S3ObjectServer is an http.Handler that answers S3 HEAD and GET
// requests for a fixed set of objects, for testing the S3 galley
// store without a real bucket. Objects are keyed "bucket/key".
type S3ObjectServer struct {
	mutex    sync.Mutex
	objects  map[string][]byte
	requests []string
}

func NewS3ObjectServer() *S3ObjectServer {
	return &S3ObjectServer{
		objects:  make(map[string][]byte),
		requests: make([]string, 0),
	}
}

// Put adds an object to the mock bucket.
func (server *S3ObjectServer) Put(bucket, key string, data []byte) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	server.objects[bucket+"/"+key] = data
}

// Requests returns "METHOD /path" for each request received.
func (server *S3ObjectServer) Requests() []string {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	return append([]string{}, server.requests...)
}

func getBasicHeaders() map[string]string {
	return map[string]string{
		"x-amz-id-2":       "ef8yU9AS1ed4OpIszj7UDNEHGran",
		"x-amz-request-id": "318BC8BC143432E5",
		"Date":             "Wed, 30 May 2018 22:32:00 GMT",
		"Last-Modified":    "Tue, 29 May 2018 12:00:00 GMT",
		"Server":           "AmazonS3",
	}
}

func (server *S3ObjectServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	server.mutex.Lock()
	server.requests = append(server.requests, r.Method+" "+r.URL.Path)
	data, ok := server.objects[strings.TrimPrefix(r.URL.Path, "/")]
	server.mutex.Unlock()

	for key, value := range getBasicHeaders() {
		w.Header().Set(key, value)
	}
	if !ok {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		if r.Method != http.MethodHead {
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message>`+
				`<Key>%s</Key><RequestId>318BC8BC143432E5</RequestId></Error>`, r.URL.Path)
		}
		return
	}
	w.Header().Set("ETag", fmt.Sprintf(`"%x"`, md5.Sum(data)))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write(data)
	}
}
