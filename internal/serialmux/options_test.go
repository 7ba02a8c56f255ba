package serialmux

import (
	"testing"

	"go.bug.st/serial"
)

func TestPortOptions_Normalise(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{"defaults", PortOptions{}, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"negative baud defaults", PortOptions{BaudRate: -5}, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"explicit", PortOptions{BaudRate: 57600, DataBits: 7, StopBits: 2, Parity: "even"}, PortOptions{BaudRate: 57600, DataBits: 7, StopBits: 2, Parity: "E"}, false},
		{"odd parity", PortOptions{Parity: " o "}, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "O"}, false},
		{"odd baud", PortOptions{BaudRate: 12345}, PortOptions{}, true},
		{"bad data bits", PortOptions{DataBits: 9}, PortOptions{}, true},
		{"bad stop bits", PortOptions{StopBits: 3}, PortOptions{}, true},
		{"bad parity", PortOptions{Parity: "mark"}, PortOptions{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalise()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Normalise() = %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalise() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Normalise() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 57600, StopBits: 2, Parity: "O"}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.BaudRate != 57600 || mode.DataBits != 8 {
		t.Errorf("mode = %+v", mode)
	}
	if mode.StopBits != serial.TwoStopBits {
		t.Errorf("StopBits = %v, want TwoStopBits", mode.StopBits)
	}
	if mode.Parity != serial.OddParity {
		t.Errorf("Parity = %v, want OddParity", mode.Parity)
	}

	mode, err = PortOptions{}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.StopBits != serial.OneStopBit || mode.Parity != serial.NoParity {
		t.Errorf("default mode = %+v", mode)
	}

	if _, err := (PortOptions{DataBits: 4}).SerialMode(); err == nil {
		t.Error("expected error for invalid data bits")
	}
}

func TestPortOptions_String(t *testing.T) {
	opts, _ := PortOptions{}.Normalise()
	if got := opts.String(); got != "115200 8N1" {
		t.Errorf("String() = %q", got)
	}
}
