//go:build !pcap
// +build !pcap

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "detector-replay requires a build with the pcap tag: go build -tags pcap ./cmd/tools/detector-replay")
	os.Exit(1)
}
