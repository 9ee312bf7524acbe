package main

import (
	"bytes"
	"flag"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Chevalier11/asio2/engine"
	"github.com/Chevalier11/asio2/match"
	"github.com/Chevalier11/asio2/metrics"
	"github.com/Chevalier11/asio2/transport"
)

func main() {
	var (
		clients     = flag.Int("clients", 200, "concurrent clients")
		messages    = flag.Int("messages", 100, "messages per client")
		size        = flag.Int("size", 64, "payload size in bytes")
		connTimeout = flag.Duration("connect-timeout", 1500*time.Millisecond, "per-connection connect timeout")
		network     = flag.String("t", "tcp", "transport: tcp | kcp | ws")
	)
	flag.Parse()

	newTransport := func() transport.Transport {
		switch *network {
		case "kcp":
			return transport.NewKCP(nil)
		case "ws":
			return transport.NewWS()
		default:
			return transport.NewTCP()
		}
	}

	serverStats := metrics.NewCollector()
	srv, err := engine.NewServer(newTransport(),
		engine.WithMetrics(serverStats),
		engine.WithOnRecv(func(c *engine.Conn, msg []byte) { c.AsyncSend(msg) }),
	)
	if err != nil {
		panic(fmt.Errorf("new server failed: %w", err))
	}
	if err := srv.Start("127.0.0.1", "0", match.Delim('\n')); err != nil {
		panic(fmt.Errorf("start server failed: %w", err))
	}
	defer srv.Stop()

	host, port, _ := net.SplitHostPort(srv.Addr().String())
	fmt.Printf("stress target: %s (%s)\n", srv.Addr(), *network)
	fmt.Printf("clients=%d messages=%d size=%d connect-timeout=%s\n", *clients, *messages, *size, connTimeout.String())

	payload := append(bytes.Repeat([]byte{'x'}, max(*size-1, 0)), '\n')
	clientStats := metrics.NewCollector()

	var (
		start       = time.Now()
		connFailed  atomic.Int64
		sendFailed  atomic.Int64
		echoedTotal atomic.Int64
		wg          sync.WaitGroup
	)

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := make(chan struct{})
			var echoed atomic.Int64
			cl, err := engine.NewClient(newTransport(),
				engine.WithMetrics(clientStats),
				engine.WithConnectTimeout(*connTimeout),
				engine.WithOnRecv(func(*engine.Conn, []byte) {
					if echoed.Add(1) == int64(*messages) {
						close(done)
					}
				}),
			)
			if err != nil {
				connFailed.Add(1)
				return
			}
			defer cl.Stop()
			if err := cl.Start(host, port, match.Delim('\n')); err != nil {
				connFailed.Add(1)
				return
			}
			for j := 0; j < *messages; j++ {
				if err := cl.AsyncSend(payload); err != nil {
					sendFailed.Add(1)
				}
			}
			select {
			case <-done:
			case <-time.After(10 * time.Second):
			}
			echoedTotal.Add(echoed.Load())
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	cs := clientStats.GetSnapshot()
	fmt.Printf("elapsed=%s\n", elapsed)
	fmt.Printf("connect-failed=%d send-failed=%d echoed=%d/%d\n",
		connFailed.Load(), sendFailed.Load(), echoedTotal.Load(), int64(*clients)*int64(*messages))
	fmt.Printf("avg-connect=%s bytes-sent=%d bytes-recv=%d\n", cs.AvgConnectLatency, cs.BytesSent, cs.BytesReceived)
	fmt.Printf("sessions-accepted=%d\n", serverStats.GetSnapshot().SessionsAccepted)
	fmt.Println("done")
}
