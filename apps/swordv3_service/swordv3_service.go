package main

import (
	"flag"
	"fmt"
	"github.com/APTrust/swordv3/context"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/service"
	"github.com/APTrust/swordv3/util/storage"
	"os"
)

// See printUsage for a description.
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
	key, err := _context.Config.CredentialsKey()
	if err != nil {
		_context.MessageLog.Fatalf("%v", err)
	}
	db, err := storage.NewBoltDB(_context.Config.DatabasePath)
	if err != nil {
		_context.MessageLog.Fatalf("Cannot open database %s: %v", _context.Config.DatabasePath, err)
	}
	defer db.Close()
	_context.MessageLog.Info("swordv3_service started with database %s", db.FilePath())

	depositService := service.NewDepositService(
		_context.Config.DepositServicePort,
		service.NewRegistry(db, key, _context.MessageLog),
		service.NewDepositStore(db),
		_context.NSQClient,
		_context.JournalClient,
		_context.Swordv3Client,
		_context.MessageLog)
	if err = depositService.Serve(); err != nil {
		_context.MessageLog.Errorf("swordv3_service stopped: %v", err)
	}
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
swordv3_service owns the database of SWORDv3 service configurations and
publication deposit records. The host application uses it to configure
services, queue deposits and read deposit status. The deposit and progress
workers use it to look up services and save status documents. It listens
for HTTP requests on localhost, on the port in the DepositServicePort
setting of the JSON config file.
Use Control-C, SIGINT, or SIGKILL to shut down the service.

Usage: swordv3_service -config=<absolute path to swordv3 config file>

Param -config is required.
`
	fmt.Println(message)
}
