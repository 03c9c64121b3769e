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

// swordv3_progress fetches the status of deposits the repository
// has not finished ingesting.
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
	_context.MessageLog.Info("Connecting to NSQLookupd at %s", _context.Config.NsqLookupd)
	consumer, err := workers.CreateNsqConsumer(_context.Config, &_context.Config.ProgressWorker)
	if err != nil {
		_context.MessageLog.Fatalf("%v", err)
	}
	_context.MessageLog.Info("swordv3_progress started")

	checker := workers.NewSwordv3ProgressChecker(workers.CollaboratorsFromContext(_context),
		&_context.Config.ProgressWorker)
	consumer.AddHandler(checker)
	if err = consumer.ConnectToNSQLookupd(_context.Config.NsqLookupd); err != nil {
		_context.MessageLog.Fatalf("%v", err)
	}

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		<-signals
		consumer.Stop()
	}()
	<-consumer.StopChan
	_context.LogStats()
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
swordv3_progress reads poll requests from the swordv3_progress NSQ topic,
fetches the current status document of each deposit and saves it. Polls
are queued by swordv3_check_in_progress.

Usage: swordv3_progress -config=<path to swordv3 config file>

Param -config is required.
`
	fmt.Println(message)
}
