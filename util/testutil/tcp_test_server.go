package testutil

import (
	"fmt"
	"net"
	"sync"
)

// TCPTestServer is for mocking misbehaving TCP services in unit
// tests, such as a server that accepts a connection and hangs up
// without answering.
type TCPTestServer struct {
	listener    net.Listener
	mutex       sync.Mutex
	isListening bool
}

// NewTCPTestServer creates a new TCP server.
// Use listenAddress "127.0.0.1:0", then check TCPTestServer.Addr().String()
// to get the address we're listening on. (System assigns port when port is zero.)
func NewTCPTestServer(listenAddress string, callback func(net.Conn)) *TCPTestServer {
	listener, err := net.Listen("tcp", listenAddress)
	if err != nil {
		panic(fmt.Sprintf("Error listening tcp server: %v", err.Error()))
	}
	server := &TCPTestServer{
		listener:    listener,
		isListening: true,
	}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if !server.IsListening() {
					return
				}
				panic(fmt.Sprintf("Error accepting tcp connection: %v", err.Error()))
			}
			go callback(conn)
		}
	}()
	return server
}

// HangUp is a callback that closes the connection without reading
// or writing anything.
func HangUp(conn net.Conn) {
	conn.Close()
}

func (server *TCPTestServer) Close() {
	server.mutex.Lock()
	server.isListening = false
	server.mutex.Unlock()
	server.listener.Close()
}

func (server *TCPTestServer) IsListening() bool {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	return server.isListening
}

func (server *TCPTestServer) Addr() net.Addr {
	return server.listener.Addr()
}
