package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/basestation/internal/monitoring"
	"github.com/banshee-data/basestation/internal/timeutil"
)

// ReplayConfig controls a capture replay.
type ReplayConfig struct {
	// Port selects UDP datagrams by destination port; 0 accepts any port.
	Port int
	// Realtime paces delivery by the capture timestamps.
	Realtime bool
	// Speed scales realtime pacing; values <= 0 mean 1.
	Speed float64
	// Clock is used for pacing; nil means the wall clock.
	Clock timeutil.Clock
	Stats *PacketStats
}

// ReplayResult summarises a finished replay.
type ReplayResult struct {
	Packets  int // capture records read
	Frames   int // UDP payloads handed to the handler
	Rejected int // payloads the handler refused
}

// ReadPCAPFile replays the UDP payloads in a classic pcap capture to
// handler, one frame per datagram. It returns when the capture ends or ctx
// is done.
func ReadPCAPFile(ctx context.Context, path string, cfg ReplayConfig, handler FrameHandler) (ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	defer f.Close()

	res, err := ReplayPCAP(ctx, f, cfg, handler)
	if err != nil {
		return res, fmt.Errorf("replay %s: %w", path, err)
	}
	return res, nil
}

// ReplayPCAP is ReadPCAPFile over an already open capture stream.
func ReplayPCAP(ctx context.Context, r io.Reader, cfg ReplayConfig, handler FrameHandler) (ReplayResult, error) {
	var res ReplayResult

	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return res, fmt.Errorf("failed to read PCAP header: %w", err)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	speed := cfg.Speed
	if speed <= 0 {
		speed = 1
	}

	var prev time.Time
	for {
		if err := ctx.Err(); err != nil {
			monitoring.Logf("PCAP replay stopping due to context cancellation (processed %d packets)", res.Packets)
			return res, err
		}

		data, ci, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			monitoring.Logf("PCAP replay complete: %d packets, %d frames, %d rejected", res.Packets, res.Frames, res.Rejected)
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("failed to read packet %d: %w", res.Packets+1, err)
		}
		res.Packets++

		payload, ok := udpPayload(data, reader.LinkType(), cfg.Port)
		if !ok {
			continue
		}

		if cfg.Realtime && !prev.IsZero() {
			if gap := ci.Timestamp.Sub(prev); gap > 0 {
				clock.Sleep(time.Duration(float64(gap) / speed))
			}
		}
		prev = ci.Timestamp

		res.Frames++
		if err := handler.HandleFrame(payload); err != nil {
			res.Rejected++
			if cfg.Stats != nil {
				cfg.Stats.AddRejected()
			}
			continue
		}
		if cfg.Stats != nil {
			cfg.Stats.AddPacket(len(payload))
		}
	}
}

// udpPayload extracts the UDP payload of a captured packet, filtered by
// destination port when port is non-zero.
func udpPayload(data []byte, link layers.LinkType, port int) ([]byte, bool) {
	packet := gopacket.NewPacket(data, link, gopacket.NoCopy)
	udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if !ok || len(udp.Payload) == 0 {
		return nil, false
	}
	if port != 0 && int(udp.DstPort) != port {
		return nil, false
	}
	return udp.Payload, true
}
