// Command rftp transfers files over UDP with a choice of reliability
// discipline, and benchmarks the engine under simulated network
// impairment.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/pborman/getopt/v2"

	"github.com/rftp/rftp/internal/networkio"
	"github.com/rftp/rftp/pkg/config"
	"github.com/rftp/rftp/pkg/transfer"
)

func printUsage() {
	fmt.Println("valid commands: send, recv, bench")
	getopt.Usage()
	os.Exit(0)
}

func printResult(result any, asJSON bool) {
	if asJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.WithError(err).Fatal("cannot serialize result")
		}
		fmt.Println(string(data))
		return
	}
	fmt.Printf("%+v\n", result)
}

func main() {
	optProtocol := getopt.StringLong("protocol", 'p', "gbn", "Reliability discipline: sw or gbn")
	optDest := getopt.StringLong("dest", 'd', "", "Destination host:port (send)")
	optListen := getopt.StringLong("listen", 'l', "0.0.0.0:2121", "Listen host:port (recv)")
	optFile := getopt.StringLong("file", 'f', "", "File to send")
	optOut := getopt.StringLong("out", 'o', "", "Output file (recv)")
	optWindow := getopt.IntLong("window", 'w', config.DefaultWindowSize, "Go-Back-N window size")
	optSegment := getopt.IntLong("segment-size", 's', config.DefaultSegmentSize, "Payload bytes per DATA frame")
	optTimeout := getopt.IntLong("timeout-ms", 't', 250, "Retransmit timeout in milliseconds")
	optRetries := getopt.IntLong("max-retries", 'r', 0, "Abort after this many retries (0 = retry forever)")
	optLoss := getopt.StringLong("loss-rate", 0, "0", "Simulated loss probability in [0,1]")
	optDelay := getopt.IntLong("delay-ms", 0, 0, "Simulated one-way delay in milliseconds")
	optSeed := getopt.IntLong("seed", 0, 0, "Seed for the impairment generator")
	optSize := getopt.IntLong("size-bytes", 0, 5_000_000, "Synthetic payload size (bench)")
	optJSON := getopt.BoolLong("json", 'j', "Print results as JSON")
	optVerbose := getopt.BoolLong("verbose", 'v', "Enable debug logging")
	helpFlag := getopt.Bool('h', "Display help")

	getopt.Parse()
	args := getopt.Args()

	log.SetHandler(cli.New(os.Stderr))
	log.SetLevel(log.InfoLevel)
	if *optVerbose {
		log.SetLevel(log.DebugLevel)
	}

	if *helpFlag || len(args) != 1 {
		printUsage()
	}

	lossRate, err := strconv.ParseFloat(*optLoss, 64)
	if err != nil || lossRate < 0 || lossRate > 1 {
		log.Fatalf("invalid loss rate: %s", *optLoss)
	}

	protocol, err := config.NewProtocolFromString(*optProtocol)
	if err != nil {
		log.WithError(err).Fatalf("invalid protocol: %s", *optProtocol)
	}

	cfg := config.NewConfig(
		config.WithProtocol(protocol),
		config.WithWindowSize(*optWindow),
		config.WithSegmentSize(*optSegment),
		config.WithTimeout(time.Duration(*optTimeout)*time.Millisecond),
		config.WithMaxRetries(*optRetries),
		config.WithImpairment(networkio.Impairment{
			LossRate: lossRate,
			Delay:    time.Duration(*optDelay) * time.Millisecond,
			Seed:     int64(*optSeed),
		}),
		config.WithLogger(log.Log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch args[0] {
	case "send":
		if *optDest == "" || *optFile == "" {
			printUsage()
		}
		src, err := os.Open(*optFile)
		if err != nil {
			log.WithError(err).Fatal("cannot open source file")
		}
		defer src.Close()
		result, err := transfer.SendFile(ctx, src, *optDest, cfg)
		if result != nil {
			printResult(result, *optJSON)
		}
		if err != nil {
			log.WithError(err).Fatal("send failed")
		}

	case "recv":
		if *optOut == "" {
			printUsage()
		}
		out, err := os.Create(*optOut)
		if err != nil {
			log.WithError(err).Fatal("cannot create output file")
		}
		defer out.Close()
		result, err := transfer.ReceiveFile(ctx, out, *optListen, cfg)
		if result != nil {
			printResult(result, *optJSON)
		}
		if err != nil {
			log.WithError(err).Fatal("recv failed")
		}

	case "bench":
		result, err := transfer.Benchmark(ctx, cfg, *optSize)
		if err != nil {
			log.WithError(err).Fatal("bench failed")
		}
		printResult(result, *optJSON)

	default:
		printUsage()
	}
}
