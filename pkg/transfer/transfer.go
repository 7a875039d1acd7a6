// Package transfer contains the public transfer API: sending a stream to
// a remote receiver, receiving one into a writer, and a loopback
// benchmark driver.
package transfer

import (
	"context"
	"io"
	"net"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/rftp/rftp/internal/model"
	"github.com/rftp/rftp/internal/networkio"
	"github.com/rftp/rftp/internal/receiver"
	"github.com/rftp/rftp/internal/sender"
	"github.com/rftp/rftp/internal/workers"
	"github.com/rftp/rftp/pkg/config"
)

// SendFile transfers the whole src stream to the receiver listening at
// dest ("host:port"), using the discipline selected by cfg. The returned
// result carries the transfer counters; it is non-nil even when the
// transfer failed, so callers can inspect what happened.
func SendFile(ctx context.Context, src io.Reader, dest string, cfg *config.Config) (*model.TransferResult, error) {
	logger := cfg.Logger()
	id := uuid.New().String()

	destAddr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "transfer: cannot resolve destination")
	}
	endpoint, err := networkio.Listen(":0", cfg.Impairment(), logger)
	if err != nil {
		return nil, err
	}
	defer endpoint.Close()

	logger.Infof("transfer %s: sending to %s with %s", id, destAddr, cfg.Protocol())

	var metrics *model.Metrics
	var runErr error
	switch cfg.Protocol() {
	case config.StopAndWait:
		sw := &sender.StopAndWait{
			Endpoint:    endpoint,
			Dest:        destAddr,
			SegmentSize: cfg.SegmentSize(),
			Timeout:     cfg.Timeout(),
			MaxRetries:  cfg.MaxRetries(),
			Logger:      logger,
		}
		metrics, runErr = sw.Run(ctx, src)
	default:
		gbn := &sender.GoBackN{
			Endpoint:    endpoint,
			Dest:        destAddr,
			SegmentSize: cfg.SegmentSize(),
			WindowSize:  cfg.WindowSize(),
			Timeout:     cfg.Timeout(),
			MaxRetries:  cfg.MaxRetries(),
			Logger:      logger,
		}
		metrics, runErr = gbn.Run(ctx, src)
	}

	result := model.NewTransferResult(id, "sender", string(cfg.Protocol()), metrics)
	return result, runErr
}

// ReceiveFile accepts one transfer on the given listen address
// ("host:port") and writes the received bytes to out. It runs until a FIN
// is accepted in order or the context is canceled. The returned result is
// non-nil even on failure.
func ReceiveFile(ctx context.Context, out io.Writer, listen string, cfg *config.Config) (*model.TransferResult, error) {
	logger := cfg.Logger()
	id := uuid.New().String()

	endpoint, err := networkio.Listen(listen, cfg.Impairment(), logger)
	if err != nil {
		return nil, err
	}

	logger.Infof("transfer %s: listening on %s", id, endpoint.LocalAddr())

	recv := &receiver.Receiver{
		Endpoint: endpoint,
		Output:   out,
		Logger:   logger,
	}

	manager := workers.NewManager(logger)

	var metrics *model.Metrics
	var runErr error
	manager.StartWorker(func() {
		defer func() {
			manager.OnWorkerDone("transfer: receiver")
			manager.StartShutdown()
		}()
		metrics, runErr = recv.Run(ctx)
	})
	manager.StartWorker(func() {
		defer manager.OnWorkerDone("transfer: watchdog")
		// unblock the receiver when the caller cancels us
		select {
		case <-ctx.Done():
			endpoint.Close()
		case <-manager.ShouldShutdown():
			endpoint.Close()
		}
	})
	manager.WaitWorkersShutdown()

	result := model.NewTransferResult(id, "receiver", "", metrics)
	return result, runErr
}
