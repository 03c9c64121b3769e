package context

import (
	"fmt"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/network"
	"github.com/APTrust/swordv3/swordv3"
	"github.com/APTrust/swordv3/util/logger"
	"github.com/op/go-logging"
	stdlog "log"
	"os"
	"sync/atomic"
)

/*
Context sets up the items common to the deposit and progress
workers (swordv3_deposit, swordv3_progress, swordv3_check_in_progress).
It also encapsulates some functions common to all of those services.
*/
type Context struct {
	Config        *models.Config
	MessageLog    *logging.Logger
	JsonLog       *stdlog.Logger
	NSQClient     *network.NSQClient
	JournalClient *network.JournalClient
	DepositClient *network.DepositClient
	Swordv3Client *swordv3.Swordv3Client
	GalleyStore   network.GalleyStore
	Notifier      *network.Notifier
	pathToLogFile string
	pathToJsonLog string
	succeeded     int64
	failed        int64
}

/*
Creates and returns a new Context object. Because some
items are absolutely required by this object and the processes
that use it, this method will exit if it gets an invalid
config param from the command line, or if it cannot set up some
essential services, such as logging.

This object is meant to used as a singleton with any of the
stand-alone deposit services.
*/
func NewContext(config *models.Config) (context *Context) {
	context = &Context{
		succeeded: int64(0),
		failed:    int64(0),
	}
	context.Config = config
	context.MessageLog, context.pathToLogFile = logger.InitLogger(config)
	context.JsonLog, context.pathToJsonLog = logger.InitJsonLogger(config)
	context.DepositClient = network.NewDepositClient(config.DepositServicePort)
	context.NSQClient = network.NewNSQClient(config.NsqdHttpAddress)
	context.initJournalClient()
	context.initSwordv3Client()
	context.initGalleyStore()
	context.Notifier = network.NewNotifier(context.JournalClient, context.NSQClient,
		config.SettingsURLTemplate, context.MessageLog)
	return context
}

func (context *Context) initJournalClient() {
	journalClient, err := network.NewJournalClient(
		context.Config.JournalAPIURL,
		context.Config.GetJournalAPIKey(),
		context.Config.HTTPTimeoutDuration(),
		context.Config.JournalCacheDuration(),
		context.MessageLog)
	if err != nil {
		context.exit(fmt.Sprintf("Exiting. Cannot initialize journal client: %v", err))
	}
	context.JournalClient = journalClient
}

func (context *Context) initSwordv3Client() {
	swordClient, err := swordv3.NewSwordv3Client(
		context.Config.HTTPTimeoutDuration(),
		context.Config.LocalDigestAlgorithms(),
		context.Config.RequestsPerSecond,
		context.MessageLog)
	if err != nil {
		context.exit(fmt.Sprintf("Exiting. Cannot initialize SWORDv3 client: %v", err))
	}
	context.Swordv3Client = swordClient
}

func (context *Context) initGalleyStore() {
	if context.Config.GalleyStorage != models.GalleyStorageS3 {
		context.GalleyStore = network.NewLocalGalleyStore(context.Config.FilesDirectory)
		return
	}
	store, err := network.NewS3GalleyStore(
		context.Config.S3Endpoint,
		context.Config.GetS3AccessKeyId(),
		context.Config.GetS3SecretAccessKey(),
		context.Config.S3Bucket,
		context.Config.StagingDirectory,
		context.Config.S3UseSSL)
	if err != nil {
		context.exit(fmt.Sprintf("Exiting. Cannot initialize S3 galley store: %v", err))
	}
	context.GalleyStore = store
}

func (context *Context) exit(message string) {
	fmt.Fprintln(os.Stderr, message)
	context.MessageLog.Fatalf("%s", message)
}

// Returns the number of work items that succeeded.
func (context *Context) Succeeded() int64 {
	return atomic.LoadInt64(&context.succeeded)
}

// Returns the number of work items that failed.
func (context *Context) Failed() int64 {
	return atomic.LoadInt64(&context.failed)
}

// Increases the count of successfully processed items by one.
func (context *Context) IncrementSucceeded() int64 {
	return atomic.AddInt64(&context.succeeded, 1)
}

// Increases the count of unsuccessfully processed items by one.
func (context *Context) IncrementFailed() int64 {
	return atomic.AddInt64(&context.failed, 1)
}

// Returns the path to this process' log file
func (context *Context) PathToLogFile() string {
	return context.pathToLogFile
}

// Returns the path to this process' JSON log file
func (context *Context) PathToJsonLog() string {
	return context.pathToJsonLog
}

// Logs info about the number of items that have succeeded and failed.
func (context *Context) LogStats() {
	context.MessageLog.Infof("**STATS** Succeeded: %d, Failed: %d",
		context.Succeeded(), context.Failed())
}
