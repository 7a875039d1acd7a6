package transfer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rftp/rftp/internal/model"
	"github.com/rftp/rftp/internal/networkio"
	"github.com/rftp/rftp/internal/receiver"
	"github.com/rftp/rftp/pkg/config"
)

// BenchmarkResult is the JSON-serializable outcome of one benchmark run.
type BenchmarkResult struct {
	// ID is the unique identifier of this run.
	ID string `json:"id"`

	// Protocol is the discipline that was exercised.
	Protocol string `json:"protocol"`

	// SizeBytes is the size of the synthetic payload.
	SizeBytes int `json:"size_bytes"`

	// Seconds is the sender's elapsed wall-clock time.
	Seconds float64 `json:"seconds"`

	// Mbps is the sender's goodput in megabits per second.
	Mbps float64 `json:"mbps"`

	// Retransmits counts sender retransmissions.
	Retransmits uint64 `json:"retransmits"`

	// Timeouts counts sender retransmit-timer expirations.
	Timeouts uint64 `json:"timeouts"`

	// Sender is the full sender-side result.
	Sender *model.TransferResult `json:"sender"`

	// Receiver is the full receiver-side result.
	Receiver *model.TransferResult `json:"receiver"`
}

// Benchmark runs a sender and a receiver over loopback with the
// impairment configured in cfg, transfers sizeBytes of synthetic payload
// and reports throughput and reliability counters. It fails when the
// receiver did not end up with exactly the payload that was sent.
func Benchmark(ctx context.Context, cfg *config.Config, sizeBytes int) (*BenchmarkResult, error) {
	logger := cfg.Logger()
	id := uuid.New().String()

	endpoint, err := networkio.Listen("127.0.0.1:0", cfg.Impairment(), logger)
	if err != nil {
		return nil, err
	}
	defer endpoint.Close()

	out := &bytes.Buffer{}
	recv := &receiver.Receiver{
		Endpoint: endpoint,
		Output:   out,
		Logger:   logger,
	}

	payload := bytes.Repeat([]byte{'A'}, sizeBytes)

	g, ctx := errgroup.WithContext(ctx)

	var recvMetrics *model.Metrics
	g.Go(func() error {
		var err error
		recvMetrics, err = recv.Run(ctx)
		return err
	})

	var sendResult *model.TransferResult
	g.Go(func() error {
		var err error
		sendResult, err = SendFile(ctx, bytes.NewReader(payload), endpoint.LocalAddr().String(), cfg)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !bytes.Equal(out.Bytes(), payload) {
		return nil, fmt.Errorf("transfer: benchmark output mismatch: sent %d bytes, received %d", sizeBytes, out.Len())
	}

	recvResult := model.NewTransferResult(id, "receiver", "", recvMetrics)
	return &BenchmarkResult{
		ID:          id,
		Protocol:    string(cfg.Protocol()),
		SizeBytes:   sizeBytes,
		Seconds:     sendResult.Seconds,
		Mbps:        sendResult.Mbps,
		Retransmits: sendResult.Retransmits,
		Timeouts:    sendResult.Timeouts,
		Sender:      sendResult,
		Receiver:    recvResult,
	}, nil
}
