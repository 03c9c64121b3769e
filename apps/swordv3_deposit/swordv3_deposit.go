package main

import (
	"flag"
	"fmt"
	"github.com/APTrust/swordv3/context"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/workers"
	"os"
	"os/signal"
	"syscall"
)

// swordv3_deposit sends published articles to SWORDv3 repositories.
func main() {
	pathToConfigFile := parseCommandLine()
	config, err := models.LoadConfigFile(pathToConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	if err = config.EnsureSecrets(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	_context := context.NewContext(config)
	if err = _context.DepositClient.Ping(2000); err != nil {
		_context.MessageLog.Fatalf("swordv3_service is not responding at %s: %v",
			_context.DepositClient.BaseURL(), err)
	}
	_context.MessageLog.Info("Connecting to NSQLookupd at %s", _context.Config.NsqLookupd)
	_context.MessageLog.Info("NSQDHttpAddress is %s", _context.Config.NsqdHttpAddress)
	consumer, err := workers.CreateNsqConsumer(_context.Config, &_context.Config.DepositWorker)
	if err != nil {
		_context.MessageLog.Fatalf("%v", err)
	}
	_context.MessageLog.Info("swordv3_deposit started")

	depositor := workers.NewSwordv3Depositor(workers.CollaboratorsFromContext(_context),
		&_context.Config.DepositWorker)
	consumer.AddHandler(depositor)
	if err = consumer.ConnectToNSQLookupd(_context.Config.NsqLookupd); err != nil {
		_context.MessageLog.Fatalf("%v", err)
	}

	go stopOnSignal(consumer.Stop)
	<-consumer.StopChan
	_context.LogStats()
}

// stopOnSignal calls stop on SIGINT or SIGTERM, so in-flight
// deposits can finish before the process exits.
func stopOnSignal(stop func()) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
	stop()
}

func parseCommandLine() (configFile string) {
	var pathToConfigFile string
	flag.StringVar(&pathToConfigFile, "config", "", "Path to swordv3 config file")
	flag.Parse()
	if pathToConfigFile == "" {
		printUsage()
		os.Exit(1)
	}
	return pathToConfigFile
}

// Tell the user about the program.
func printUsage() {
	message := `
swordv3_deposit reads deposit requests from the swordv3_deposit NSQ topic
and sends each publication's metadata and PDF galleys to the SWORDv3
service named in the request. swordv3_service must be running.

Usage: swordv3_deposit -config=<path to swordv3 config file>

Param -config is required.
`
	fmt.Println(message)
}
