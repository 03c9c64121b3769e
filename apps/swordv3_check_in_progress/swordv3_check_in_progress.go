package main

import (
	"flag"
	"fmt"
	"github.com/APTrust/swordv3/context"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/util/fileutil"
	"github.com/APTrust/swordv3/workers"
	"os"
)

func main() {
	pathToConfigFile, pathToStatsFile := parseCommandLine()
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
	queue := workers.NewSwordv3InProgressQueue(
		_context.DepositClient,
		_context.DepositClient,
		_context.NSQClient,
		_context.MessageLog)
	queue.Run()
	_context.MessageLog.Info("Queued %d polls, skipped %d publications",
		queue.Stats.QueuedCount(), len(queue.Stats.Skipped))
	if pathToStatsFile != "" {
		if err := queue.Stats.DumpToFile(pathToStatsFile); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		fmt.Println("Wrote stats to", pathToStatsFile)
		_context.MessageLog.Info("Wrote stats to %s", pathToStatsFile)
	}
	if queue.Stats.HasErrors() {
		os.Exit(2)
	}
}

func parseCommandLine() (configFile string, statsFile string) {
	var pathToConfigFile string
	var pathToStatsFile string
	flag.StringVar(&pathToConfigFile, "config", "", "Path to swordv3 config file")
	flag.StringVar(&pathToStatsFile, "stats", "", "Path to file where we should dump JSON stats")
	flag.Parse()
	if pathToConfigFile == "" {
		printUsage()
		os.Exit(1)
	}
	pathToStatsFile, err := fileutil.ExpandTilde(pathToStatsFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	return pathToConfigFile, pathToStatsFile
}

// Tell the user about the program.
func printUsage() {
	message := `
swordv3_check_in_progress queues a poll in the swordv3_progress NSQ topic
for every deposit whose last known state is accepted, inProgress or
inWorkflow. Run it from cron. swordv3_service must be running.

Usage: swordv3_check_in_progress -config=<path to swordv3 config file> -stats=<path_to_stats_file>

Param -config is required.
Param -stats tells us where to dump a JSON report of queued, skipped and
failed publications. It is mainly for testing and diagnostics.

Exits with status 2 if any poll could not be queued.
`
	fmt.Println(message)
}
