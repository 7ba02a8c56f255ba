// Package ble receives telemetry frames as notifications from a Bluetooth
// Low Energy peripheral. It connects to the first peripheral advertising the
// telemetry service and does not reconnect: when the adapter reports the
// peripheral disconnected, Run returns ErrDisconnected and the caller decides
// what to do.
package ble

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/tevino/abool/v2"
	"tinygo.org/x/bluetooth"

	"github.com/banshee-data/basestation/internal/monitoring"
)

var (
	// ServiceUUID is advertised by telemetry peripherals.
	ServiceUUID = mustParseUUID("112f3c4e-6dc1-4113-855d-74e4979d514a")
	// CharacteristicUUID carries one frame per notification.
	CharacteristicUUID = mustParseUUID("2065f2fe-f580-4303-b12b-ed67fe43e4b3")
)

func mustParseUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(fmt.Sprintf("ble: bad uuid %q: %v", s, err))
	}
	return u
}

// ErrNoCharacteristic is returned when a peripheral advertises the service
// but does not expose the frame characteristic.
var ErrNoCharacteristic = errors.New("ble: telemetry characteristic not found")

// ErrDisconnected is returned by Run when the peripheral drops the link.
var ErrDisconnected = errors.New("ble: peripheral disconnected")

// FrameHandler consumes one frame per notification.
type FrameHandler interface {
	HandleFrame(data []byte) error
}

// Stats counts notifications received over a link.
type Stats struct {
	Notifications uint64 `json:"notifications"`
	Rejected      uint64 `json:"rejected"`
	Connected     bool   `json:"connected"`
	Peer          string `json:"peer,omitempty"`
}

// Link is a single BLE telemetry connection.
type Link struct {
	adapter *bluetooth.Adapter
	handler FrameHandler

	connected     *abool.AtomicBool
	lost          chan struct{}
	peer          atomic.Value // string
	notifications atomic.Uint64
	rejected      atomic.Uint64
}

// NewLink returns a link on the default adapter delivering to handler.
func NewLink(handler FrameHandler) *Link {
	return &Link{
		adapter:   bluetooth.DefaultAdapter,
		handler:   handler,
		connected: abool.New(),
		lost:      make(chan struct{}, 1),
	}
}

// Stats returns the link counters.
func (l *Link) Stats() Stats {
	peer, _ := l.peer.Load().(string)
	return Stats{
		Notifications: l.notifications.Load(),
		Rejected:      l.rejected.Load(),
		Connected:     l.connected.IsSet(),
		Peer:          peer,
	}
}

// notify is the notification callback. The value buffer may be reused by
// the stack after the callback returns, so it is copied.
func (l *Link) notify(value []byte) {
	l.notifications.Add(1)
	frame := append([]byte(nil), value...)
	if err := l.handler.HandleFrame(frame); err != nil {
		l.rejected.Add(1)
	}
}

// handleConnect receives adapter connection events. Only a disconnect of the
// current peer is acted on.
func (l *Link) handleConnect(addr string, connected bool) {
	if connected {
		return
	}
	if peer, _ := l.peer.Load().(string); peer == "" || peer != addr {
		return
	}
	l.connected.UnSet()
	select {
	case l.lost <- struct{}{}:
	default:
	}
}

// Run scans for a telemetry peripheral, connects, subscribes to frame
// notifications and blocks until ctx is done or the peripheral disconnects.
func (l *Link) Run(ctx context.Context) error {
	if err := l.adapter.Enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w", err)
	}

	result, err := l.scan(ctx)
	if err != nil {
		return err
	}
	monitoring.Logf("ble: found %s (%s)", result.LocalName(), result.Address.String())

	l.adapter.SetConnectHandler(func(device bluetooth.Addresser, connected bool) {
		l.handleConnect(device.String(), connected)
	})

	device, err := l.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("ble: connect %s: %w", result.Address.String(), err)
	}
	defer func() {
		device.Disconnect()
		l.connected.UnSet()
		monitoring.Logf("ble: disconnected from %s", result.Address.String())
	}()

	services, err := device.DiscoverServices([]bluetooth.UUID{ServiceUUID})
	if err != nil {
		return fmt.Errorf("ble: discover services: %w", err)
	}
	if len(services) == 0 {
		return fmt.Errorf("ble: service %s not found", ServiceUUID.String())
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{CharacteristicUUID})
	if err != nil {
		return fmt.Errorf("ble: discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return ErrNoCharacteristic
	}

	if err := chars[0].EnableNotifications(l.notify); err != nil {
		return fmt.Errorf("ble: enable notifications: %w", err)
	}
	l.peer.Store(result.Address.String())
	l.connected.Set()
	monitoring.Logf("ble: connected to %s, receiving frames", result.Address.String())

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.lost:
		return ErrDisconnected
	}
}

// scan blocks until a peripheral advertising ServiceUUID is seen or ctx is
// done.
func (l *Link) scan(ctx context.Context) (bluetooth.ScanResult, error) {
	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)

	go func() {
		scanErr <- l.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if result.AdvertisementPayload.HasServiceUUID(ServiceUUID) && result.Address != nil {
				adapter.StopScan()
				select {
				case found <- result:
				default:
				}
			}
		})
	}()

	select {
	case <-ctx.Done():
		l.adapter.StopScan()
		return bluetooth.ScanResult{}, ctx.Err()
	case err := <-scanErr:
		select {
		case r := <-found:
			return r, nil
		default:
		}
		if err == nil {
			err = errors.New("scan stopped")
		}
		return bluetooth.ScanResult{}, fmt.Errorf("ble: scan: %w", err)
	case r := <-found:
		return r, nil
	}
}
