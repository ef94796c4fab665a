// Command hamstr-link is the reference CLI driving internal/session
// over a configured radio link: "client" issues one DATA_REQUEST and
// prints the response to stdout, "serve" answers requests by running
// a shell command and returning its stdout as the response payload.
//
// Grounded on src/kissutil.go's pflag-based option parsing
// (StringP/IntP/BoolP, a Usage func wrapping pflag.PrintDefaults) and
// on cmd/direwolf's pattern of loading a config file before doing
// anything else.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/pflag"

	"github.com/hamstr-radio/hamstr-link/internal/ax25"
	"github.com/hamstr-radio/hamstr-link/internal/config"
	"github.com/hamstr-radio/hamstr-link/internal/eventlog"
	"github.com/hamstr-radio/hamstr-link/internal/ptt"
	"github.com/hamstr-radio/hamstr-link/internal/sched"
	"github.com/hamstr-radio/hamstr-link/internal/segment"
	"github.com/hamstr-radio/hamstr-link/internal/session"
	"github.com/hamstr-radio/hamstr-link/internal/tnc"
	"github.com/hamstr-radio/hamstr-link/internal/vara"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "Path to hamstr-link YAML config file (required)")
		role       = pflag.StringP("role", "r", "client", "Role: client or serve")
		reqKind    = pflag.IntP("request-kind", "k", 1, "DATA_REQUEST kind byte (client role)")
		reqParams  = pflag.StringP("params", "p", "", "DATA_REQUEST parameter bytes (client role)")
		serveCmd   = pflag.StringP("exec", "e", "", "Shell command producing the response on stdout (serve role)")
		pttHamlib  = pflag.Bool("ptt-hamlib", false, "Key PTT via Hamlib rig control instead of leaving it unmanaged")
		hamlibPort = pflag.String("hamlib-port", "", "Hamlib rig control device, e.g. /dev/ttyUSB0")
		hamlibModel = pflag.Int("hamlib-model", 2, "Hamlib rig model number (2 = NET rigctld)")
		help       = pflag.Bool("help", false, "Display help text")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: hamstr-link -c config.yaml -r client|serve [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help || *configPath == "" {
		pflag.Usage()
		if *configPath == "" {
			os.Exit(1)
		}
		return
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hamstr-link: %v\n", err)
		os.Exit(1)
	}

	log := eventlog.NewBus()
	log.Subscribe(eventlog.ObserverFunc(func(e eventlog.Event) {
		fmt.Fprintln(os.Stderr, e.Line())
	}))

	local, err := ax25.ParseCallsign(cfg.LocalCallsign)
	if err != nil {
		fatal(err)
	}
	remote, err := ax25.ParseCallsign(cfg.RemoteCallsign)
	if err != nil {
		fatal(err)
	}

	var pttBackend ptt.Backend
	if *pttHamlib {
		hb, err := ptt.NewHamlibBackend(*hamlibModel, *hamlibPort, cfg.BaudRate)
		if err != nil {
			fatal(fmt.Errorf("ptt: %w", err))
		}
		pttBackend = hb
	}

	ctx := context.Background()

	transport, err := buildTransport(ctx, cfg, local, remote, pttBackend, log)
	if err != nil {
		fatal(err)
	}

	switch *role {
	case "client":
		runClient(ctx, transport, local, remote, cfg, log, byte(*reqKind), []byte(*reqParams))
	case "serve":
		runServe(transport, local, remote, cfg, log, *serveCmd)
	default:
		fatal(fmt.Errorf("unknown role %q (want client or serve)", *role))
	}
}

// buildTransport wires a segment.Transport for the configured
// connection type: tcp/serial run through internal/tnc and the
// scheduler's PTT-gated framing, vara bypasses both.
func buildTransport(ctx context.Context, cfg config.Config, local, remote ax25.Callsign, pttBackend ptt.Backend, log *eventlog.Bus) (segment.Transport, error) {
	if cfg.ConnectionType == config.ConnectionVARA {
		adapter := vara.New(vara.Config{
			Host:        cfg.TCPHost,
			ControlPort: cfg.TCPPort,
			DataPort:    cfg.TCPPort + 1,
			RemoteRadio: remote.String(),
		}, log)
		if err := adapter.Connect(ctx); err != nil {
			return nil, fmt.Errorf("vara: %w", err)
		}
		return adapter, nil
	}

	var backend tnc.Backend
	switch cfg.ConnectionType {
	case config.ConnectionTCP:
		backend = tnc.NewKISSTCP(cfg.TCPHost, cfg.TCPPort)
	case config.ConnectionSerial:
		backend = tnc.NewKISSSerial(cfg.SerialPort, cfg.SerialSpeed)
	default:
		return nil, fmt.Errorf("unsupported connection_type %q", cfg.ConnectionType)
	}
	if err := backend.Connect(ctx); err != nil {
		return nil, fmt.Errorf("tnc: %w", err)
	}

	timing := sched.Timing{
		PTTTxDelay:      cfg.PTTTxDelay,
		PTTTail:         cfg.PTTTail,
		PTTRxDelay:      cfg.PTTRxDelay,
		PacketSendDelay: cfg.PacketSendDelay,
	}
	return sched.New(backend, pttBackend, local, remote, timing, log), nil
}

func runClient(ctx context.Context, transport segment.Transport, local, remote ax25.Callsign, cfg config.Config, log *eventlog.Bus, kind byte, params []byte) {
	s := session.NewInitiator(transport, local, remote, cfg, log)
	if err := s.Connect(ctx); err != nil {
		fatal(fmt.Errorf("connect: %w", err))
	}
	defer s.Close()

	payload, err := s.RequestPayload(kind, params)
	if err != nil {
		fatal(fmt.Errorf("request: %w", err))
	}
	os.Stdout.Write(payload)
}

func runServe(transport segment.Transport, local, remote ax25.Callsign, cfg config.Config, log *eventlog.Bus, command string) {
	for {
		s, err := session.Accept(transport, local, remote, cfg, log)
		if err != nil {
			fatal(fmt.Errorf("accept: %w", err))
		}
		err = s.Serve(func(kind byte, params []byte) ([]byte, error) {
			return runHandler(command, kind, params)
		})
		if err != nil {
			log.Emitf(eventlog.Warning, "session ended: %v", err)
		}
	}
}

func runHandler(command string, kind byte, params []byte) ([]byte, error) {
	if command == "" {
		return nil, fmt.Errorf("no --exec command configured for kind %d", kind)
	}
	cmd := exec.Command("sh", "-c", command)
	cmd.Stdin = bytes.NewReader(params)
	cmd.Env = append(os.Environ(), fmt.Sprintf("HAMSTR_REQUEST_KIND=%d", kind))
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	return out, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "hamstr-link: %v\n", err)
	os.Exit(1)
}
