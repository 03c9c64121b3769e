package main

import (
	"bufio"
	"flag"
	"fmt"
	"github.com/APTrust/swordv3/util"
	"github.com/APTrust/swordv3/util/fileutil"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Start nsqlookupd, nsqd, nsqadmin and swordv3_service for local
// development. Control-C stops all of them.
func main() {
	nsqConfig := flag.String("nsqconfig", "", "Path to nsqd config file")
	swordConfig := flag.String("config", "", "Path to swordv3 config file")
	flag.Parse()
	if *nsqConfig == "" || *swordConfig == "" {
		printUsage()
		os.Exit(1)
	}
	run(*nsqConfig, *swordConfig)
}

func run(nsqConfig, swordConfig string) {
	fmt.Println("Starting NSQ and swordv3_service. Use Control-C to quit all")
	nsqlookupd := startProcess("nsqlookupd")

	dataDir, err := expandedDataDir(nsqConfig)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	nsqdArgs := []string{fmt.Sprintf("--config=%s", nsqConfig)}
	if dataDir != "" {
		nsqdArgs = append(nsqdArgs, fmt.Sprintf("--data-path=%s", dataDir))
	}
	nsqd := startProcess("nsqd", nsqdArgs...)
	nsqadmin := startProcess("nsqadmin", "--lookupd-http-address=127.0.0.1:4161")
	swordService := startProcess("swordv3_service", fmt.Sprintf("-config=%s", swordConfig))

	for _, cmd := range []*exec.Cmd{nsqlookupd, nsqd, nsqadmin, swordService} {
		cmd.Wait()
	}
}

// startProcess runs command with its stdout and stderr copied to
// ours.
func startProcess(command string, arg ...string) *exec.Cmd {
	fmt.Println("Starting", command, arg)
	cmd := exec.Command(command, arg...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		fmt.Println("Error starting", command, err)
	}
	return cmd
}

// expandedDataDir returns the data_path setting of the nsqd config
// file with ~ expanded, creating the directory if necessary.
func expandedDataDir(configFile string) (string, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return "", fmt.Errorf("Cannot open config file: %v", err)
	}
	defer file.Close()
	bufReader := bufio.NewReader(file)
	for {
		line, err := bufReader.ReadString('\n')
		cleanLine := strings.TrimSpace(line)
		if strings.HasPrefix(cleanLine, "data_path") {
			parts := strings.SplitN(cleanLine, "=", 2)
			if len(parts) < 2 {
				return "", fmt.Errorf("Config file setting for data_path is missing or malformed.")
			}
			expanded, err := fileutil.ExpandTilde(util.CleanString(parts[1]))
			if err != nil {
				return "", fmt.Errorf("Cannot expand data_path setting '%s': %v", parts[1], err)
			}
			if !fileutil.FileExists(expanded) {
				fmt.Printf("Creating NSQ data directory %s \n", expanded)
				os.MkdirAll(expanded, 0755)
			}
			return expanded, nil
		}
		if err == io.EOF {
			break
		} else if err != nil {
			return "", err
		}
	}
	return "", nil
}

func printUsage() {
	message := `
swordv3_dev_services starts nsqlookupd, nsqd, nsqadmin and swordv3_service
for local development. All of them must be in your PATH. Control-C stops
all of them.

Usage: swordv3_dev_services -nsqconfig=config/nsq/dev.config -config=config/dev.json
`
	fmt.Println(message)
}
