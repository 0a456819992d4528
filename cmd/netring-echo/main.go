// Command netring-echo starts a Networker bound to a host:port and drives
// it with the reference echoapp.Application, the same "bootstrap, wire a
// backend, wait on signals" shape as the teacher's cmd/ublk-mem.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	netring "github.com/ehrlich-b/go-netring"
	echoapp "github.com/ehrlich-b/go-netring/examples/netring-echo"
	"github.com/ehrlich-b/go-netring/internal/logging"
)

func main() {
	var (
		host       = flag.String("host", "127.0.0.1", "Dotted-quad IPv4 address to bind")
		port       = flag.Uint("port", 8080, "TCP port to listen on")
		maxClients = flag.Uint("max-clients", 1024, "Fixed slot table size (backpressure bound)")
		maxQueue   = flag.Uint("max-queue", 128, "Listen backlog")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	metrics := netring.NewMetrics()
	observer := netring.NewMetricsObserver(metrics, logger, nil)

	n, err := netring.NewNetworker(netring.Settings{
		Host:       *host,
		Port:       uint16(*port),
		MaxQueue:   uint16(*maxQueue),
		MaxClients: uint16(*maxClients),
		Logger:     logger,
		Observer:   observer,
	}, nil)
	if err != nil {
		logger.Error("failed to start networker", "error", err)
		os.Exit(1)
	}
	defer n.Close()

	app, err := echoapp.New(logger)
	if err != nil {
		logger.Error("failed to build echo application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	logger.Info("netring-echo listening",
		"host", *host, "port", *port, "max_clients", *maxClients, "max_queue", *maxQueue)
	fmt.Printf("Listening on %s:%d (max_clients=%d)\n", *host, *port, *maxClients)
	fmt.Printf("Press Ctrl+C to stop...\n")
	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			logger.Info("=== GOROUTINE STACK TRACE DUMP ===")
			buf := make([]byte, 1024*1024)
			nBytes := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== FULL GOROUTINE STACK DUMP ===\n%s\n", buf[:nBytes])

			filename := fmt.Sprintf("netring-echo-stacks-%d.txt", time.Now().Unix())
			if f, err := os.Create(filename); err == nil {
				fmt.Fprintf(f, "Goroutine stack dump\nProcess ID: %d\n\n", os.Getpid())
				f.Write(buf[:nBytes])
				fmt.Fprintf(f, "\n\n=== GOROUTINE PROFILE ===\n")
				pprof.Lookup("goroutine").WriteTo(f, 2)
				f.Close()
				logger.Info("stack trace written to file", "file", filename)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if err := n.Cycle(); err != nil {
				logger.Error("fatal ring error, server must restart", "error", err)
				os.Exit(1)
			}
			if _, err := app.DriveOnce(n); err != nil {
				logger.Error("application error", "error", err)
			}
		}
	}()

	<-sigCh
	logger.Info("received shutdown signal")
	close(stop)
	<-done
	os.Exit(0)
}
