//go:build pcap
// +build pcap

// Command detector-replay replays captured detector UDP traffic from a
// pcap file against a running junctiond, preserving the original packet
// pacing. Useful for reproducing field traffic patterns in the lab.
package main

import (
	"flag"
	"log"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

var (
	pcapFile = flag.String("pcap", "", "Capture file to replay (required)")
	target   = flag.String("target", "127.0.0.1:9100", "UDP address of the daemon's -udp-listen")
	speed    = flag.Float64("speed", 1.0, "Replay speed multiplier (1.0 = real-time, 0 = as fast as possible)")
	udpPort  = flag.Int("udp-port", 0, "Only replay packets captured on this UDP port (0 = all UDP)")
)

func main() {
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("a -pcap file is required")
	}
	if *speed < 0 {
		log.Fatal("-speed must be non-negative")
	}

	handle, err := pcap.OpenOffline(*pcapFile)
	if err != nil {
		log.Fatalf("failed to open capture: %v", err)
	}
	defer handle.Close()

	conn, err := net.Dial("udp", *target)
	if err != nil {
		log.Fatalf("failed to dial %s: %v", *target, err)
	}
	defer conn.Close()

	source := gopacket.NewPacketSource(handle, handle.LinkType())

	var (
		sent     int
		skipped  int
		lastTime time.Time
	)
	for packet := range source.Packets() {
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			skipped++
			continue
		}
		udp := udpLayer.(*layers.UDP)
		if *udpPort != 0 && int(udp.DstPort) != *udpPort {
			skipped++
			continue
		}
		payload := udp.Payload
		if len(payload) == 0 {
			skipped++
			continue
		}

		// Pace by capture timestamps so the daemon sees field timing.
		ts := packet.Metadata().Timestamp
		if *speed > 0 && !lastTime.IsZero() && ts.After(lastTime) {
			time.Sleep(time.Duration(float64(ts.Sub(lastTime)) / *speed))
		}
		lastTime = ts

		if _, err := conn.Write(payload); err != nil {
			log.Fatalf("failed to send packet: %v", err)
		}
		sent++
	}

	log.Printf("replayed %d packets to %s (%d skipped)", sent, *target, skipped)
}
