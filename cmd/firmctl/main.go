// firmctl is the command-line interface to a FIRM sensor device: live
// telemetry streaming, device configuration, magnetometer calibration, mock
// log replay, and capture inspection.
//
// Usage:
//
//	firmctl [flags] <command> [args]
//
// Commands:
//
//	list-ports             enumerate serial ports
//	info                   print device identity, config, and calibration
//	set-config <name> <hz> <usb|uart|i2c|spi>
//	stream                 print/broadcast/record live telemetry
//	calibrate              run and apply magnetometer calibration
//	replay <capture.frm>   stream a capture to the device in mock mode
//	logsum <capture.frm>   summarize a capture file
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/client"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/broadcast"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/config"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/mocklog"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/protocol"
)

func main() {
	var configPath string
	var cmdTimeout time.Duration
	var calDuration time.Duration
	flag.StringVar(&configPath, "config", "", "Path to YAML config (optional)")
	flag.DurationVar(&cmdTimeout, "timeout", 2*time.Second, "Request/reply timeout")
	flag.DurationVar(&calDuration, "duration", 30*time.Second, "Calibration collection window")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch args[0] {
	case "list-ports":
		ports, err := client.ListPorts()
		if err != nil {
			log.Fatalf("port enumeration failed: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}

	case "logsum":
		if len(args) < 2 {
			log.Fatalf("usage: firmctl logsum <capture.frm>")
		}
		if err := printCaptureSummary(args[1]); err != nil {
			log.Fatalf("logsum failed: %v", err)
		}

	case "info":
		withClient(cfg, func(c *client.Client) error {
			return runInfo(c, cmdTimeout)
		})

	case "set-config":
		if len(args) < 4 {
			log.Fatalf("usage: firmctl set-config <name> <frequency_hz> <usb|uart|i2c|spi>")
		}
		withClient(cfg, func(c *client.Client) error {
			return runSetConfig(c, args[1], args[2], args[3], cmdTimeout)
		})

	case "stream":
		withClient(cfg, func(c *client.Client) error {
			return runStream(ctx, c, cfg)
		})

	case "calibrate":
		withClient(cfg, func(c *client.Client) error {
			fit, acked, err := c.RunAndApplyMagnetometerCalibration(ctx, calDuration, cmdTimeout)
			if err != nil {
				return err
			}
			if fit == nil {
				return fmt.Errorf("calibration fit failed (rotate the device through all orientations)")
			}
			fmt.Printf("offsets: %v\n", fit.Offsets)
			fmt.Printf("scale:   %v\n", fit.Scale)
			fmt.Printf("field:   %.3f\n", fit.FieldStrength)
			fmt.Printf("applied: %v\n", acked)
			return nil
		})

	case "replay":
		if len(args) < 2 {
			log.Fatalf("usage: firmctl replay <capture.frm>")
		}
		withClient(cfg, func(c *client.Client) error {
			return runReplay(ctx, c, cfg, args[1])
		})

	default:
		log.Fatalf("unknown command %q", args[0])
	}
}

// withClient opens the configured serial port, starts the client, runs fn,
// and tears everything down.
func withClient(cfg config.Config, fn func(*client.Client) error) {
	port := cfg.Serial.Port
	if port == "" {
		ports, err := client.ListPorts()
		if err != nil || len(ports) == 0 {
			log.Fatalf("no serial port configured and none found (err=%v)", err)
		}
		port = ports[0]
		log.Printf("auto-selected port %s", port)
	}

	c, err := client.New(port, cfg.Serial.Baud, cfg.Serial.ReadTimeout)
	if err != nil {
		log.Fatalf("open failed: %v", err)
	}
	if err := c.Start(); err != nil {
		log.Fatalf("start failed: %v", err)
	}
	defer c.Stop()

	log.Printf("firm client started port=%s baud=%d", port, cfg.Serial.Baud)
	if err := fn(c); err != nil {
		log.Fatalf("%v", err)
	}
}

func runInfo(c *client.Client, timeout time.Duration) error {
	info, err := c.GetDeviceInfo(timeout)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("device info request timed out")
	}
	fmt.Printf("id:       %d\nfirmware: %s\n", info.ID, info.FirmwareVersion)

	devCfg, err := c.GetDeviceConfig(timeout)
	if err != nil {
		return err
	}
	if devCfg != nil {
		fmt.Printf("name:     %s\nrate:     %d Hz\nprotocol: %s\n", devCfg.Name, devCfg.FrequencyHz, devCfg.Protocol)
	}

	cal, err := c.GetCalibration(timeout)
	if err != nil {
		return err
	}
	if cal != nil {
		fmt.Printf("mag offsets: %v\nmag scale:   %v\n", cal.MagOffsets, cal.MagScale)
	}
	return nil
}

func runSetConfig(c *client.Client, name, freqStr, protoStr string, timeout time.Duration) error {
	freq, err := strconv.ParseUint(freqStr, 10, 16)
	if err != nil {
		return fmt.Errorf("frequency %q: %w", freqStr, err)
	}
	proto, err := parseProtocol(protoStr)
	if err != nil {
		return err
	}

	ok, err := c.SetDeviceConfig(name, uint16(freq), proto, timeout)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("device did not acknowledge configuration")
	}
	fmt.Println("configuration applied")
	return nil
}

func parseProtocol(s string) (protocol.Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "usb":
		return protocol.ProtocolUSB, nil
	case "uart":
		return protocol.ProtocolUART, nil
	case "i2c":
		return protocol.ProtocolI2C, nil
	case "spi":
		return protocol.ProtocolSPI, nil
	default:
		return 0, fmt.Errorf("unknown protocol %q", s)
	}
}

func runStream(ctx context.Context, c *client.Client, cfg config.Config) error {
	var bc *broadcast.Broadcaster
	if cfg.Stream.UDPDest != "" {
		var err error
		bc, err = broadcast.NewBroadcaster(cfg.Stream.UDPDest)
		if err != nil {
			return err
		}
		defer bc.Close()
		log.Printf("telemetry broadcast dest=%s", cfg.Stream.UDPDest)
	}

	var rec *mocklog.Writer
	if cfg.Record.Path != "" {
		var err error
		rec, err = mocklog.CreateWriter(cfg.Record.Path, mocklog.Header{SampleRateHz: uint16(cfg.Record.SampleRateHz)})
		if err != nil {
			return err
		}
		defer rec.Close()
		log.Printf("recording capture path=%s", cfg.Record.Path)
	}

	total := 0
	for ctx.Err() == nil {
		for _, p := range c.GetDataPackets(500 * time.Millisecond) {
			total++
			if cfg.Stream.PrintEvery > 0 && total%cfg.Stream.PrintEvery == 0 {
				fmt.Printf("t=%.3fs temp=%.1fC p=%.0fPa mag=(%.1f %.1f %.1f)uT\n",
					p.TimestampSeconds, p.TemperatureCelsius, p.PressurePascals,
					p.MagXMicroteslas, p.MagYMicroteslas, p.MagZMicroteslas)
			}
			if bc != nil {
				if err := bc.SendPacket(p); err != nil {
					log.Printf("broadcast send failed: %v", err)
				}
			}
			if rec != nil {
				if err := rec.WriteFrame(time.Now(), protocol.BuildTelemetryFrame(p)); err != nil {
					return err
				}
			}
		}
		if !c.IsRunning() {
			if err := c.Err(); err != nil {
				return err
			}
			return fmt.Errorf("reader stopped")
		}
	}

	counters := c.Counters()
	log.Printf("stream done packets=%d dropped=%d framing_faults=%d", total, c.DroppedPackets(), counters.FramingFaults)
	return nil
}

func runReplay(ctx context.Context, c *client.Client, cfg config.Config, path string) error {
	if err := c.StartMockLogStream(path, 5*time.Second, cfg.Replay.Realtime, cfg.Replay.Speed, true); err != nil {
		return err
	}
	log.Printf("replay started path=%s speed=%.2f realtime=%v", path, cfg.Replay.Speed, cfg.Replay.Realtime)

	for ctx.Err() == nil && c.IsMockLogStreaming() {
		time.Sleep(100 * time.Millisecond)
	}

	sent, err := c.StopMockLogStream(ctx.Err() != nil, true)
	if err != nil {
		return err
	}
	log.Printf("replay finished frames=%d", sent)
	return nil
}
