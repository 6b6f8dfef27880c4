package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:5000", "chat server address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		logger.Error("could not connect", "addr", *addr, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	go receive(conn)

	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		line := in.Text()
		if _, err := fmt.Fprintln(conn, line); err != nil {
			logger.Warn("send failed", "error", err)
			return
		}
		if strings.EqualFold(strings.TrimSpace(line), "/quit") {
			return
		}
	}
}

// receive prints server lines until the connection closes.
func receive(conn net.Conn) {
	r := bufio.NewScanner(conn)
	for r.Scan() {
		fmt.Println(r.Text())
	}
	fmt.Println("[disconnected] Server closed the connection.")
	os.Exit(0)
}
