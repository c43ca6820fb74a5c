package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/drunlade/go-ymodem/config"
	"github.com/drunlade/go-ymodem/metrics"
	"github.com/drunlade/go-ymodem/notify"
	"github.com/drunlade/go-ymodem/serialport"
	"github.com/drunlade/go-ymodem/sink"
	"github.com/drunlade/go-ymodem/ymodem"
)

func receiveCommand() *cli.Command {
	return &cli.Command{
		Name:   "receive",
		Usage:  "Receive one file over a serial port, or stdin/stdout when no port is given",
		Flags:  receiveFlags(),
		Action: receiveAction,
	}
}

func receiveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to grb.yaml"},

		// transport
		&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "serial device, stdin/stdout if empty"},
		&cli.IntFlag{Name: "baud", Usage: "baud rate", Value: 115200},
		&cli.IntFlag{Name: "data-bits", Usage: "data bits", Value: 8},
		&cli.StringFlag{Name: "parity", Usage: "none, odd, even, mark or space", Value: "none"},
		&cli.IntFlag{Name: "stop-bits", Usage: "1 or 2", Value: 1},

		// host loop
		&cli.DurationFlag{Name: "timeout", Aliases: []string{"t"}, Usage: "read timeout", Value: 3 * time.Second},
		&cli.IntFlag{Name: "max-polls", Usage: "'C' polls before giving up on the sender", Value: 10},
		&cli.IntFlag{Name: "max-errors", Usage: "timeouts tolerated once the transfer started", Value: 10},
		&cli.BoolFlag{Name: "trace-wire", Usage: "log every byte at debug level"},

		// storage
		&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "output directory", Value: "."},
		&cli.StringFlag{Name: "s3", Usage: "upload to bucket[/prefix] instead of a directory"},
		&cli.StringFlag{Name: "s3-region", Usage: "AWS region"},
		&cli.StringFlag{Name: "s3-endpoint", Usage: "S3-compatible endpoint URL"},
		&cli.BoolFlag{Name: "s3-path-style", Usage: "use path-style S3 addressing"},
		&cli.Uint64Flag{Name: "max-size", Usage: "refuse files larger than this many bytes (0: no limit)"},
		&cli.BoolFlag{Name: "overwrite", Aliases: []string{"y"}, Usage: "overwrite existing files"},

		// notification and metrics
		&cli.StringFlag{Name: "redis-url", Usage: "publish a completion event to Redis", EnvVars: []string{"GRB_REDIS_URL"}},
		&cli.StringFlag{Name: "redis-channel", Usage: "Redis channel", Value: notify.DefaultChannel},
		&cli.StringFlag{Name: "redis-encoding", Usage: "json or msgpack", Value: notify.EncodingJSON},
		&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address"},

		// output
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Value: "warn"},
		&cli.StringFlag{Name: "log-file", Usage: "write JSON protocol logs to this file"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "show progress"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "no summary"},
	}
}

func receiveAction(c *cli.Context) error {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		cfg = loaded
	}
	applyFlags(c, cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closeLog()

	reader, writer, source, closeTransport, err := openTransport(cfg.Port)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closeTransport()

	store, err := newSink(ctx, cfg.Storage, logger)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	callbacks := &ymodem.Callbacks{}
	if c.Bool("verbose") {
		callbacks.OnProgress = func(filename string, transferred, total int64, rate float64) {
			fmt.Fprint(os.Stderr, renderProgress(filename, transferred, total, rate))
		}
	}

	if cfg.Metrics.Addr != "" {
		collector := metrics.New()
		callbacks.OnEvent = collector.Observe
		callbacks.OnFileComplete = func(_ string, _ int64, d time.Duration) {
			collector.ObserveDuration(d)
		}
		shutdown := serveMetrics(cfg.Metrics.Addr, collector, logger)
		defer shutdown()
	}

	sessionCfg := ymodem.DefaultConfig()
	sessionCfg.Timeout = cfg.Receive.Timeout.Duration
	sessionCfg.MaxPolls = cfg.Receive.MaxPolls
	sessionCfg.MaxErrors = cfg.Receive.MaxErrors
	sessionCfg.TraceWire = cfg.Receive.TraceWire

	session := ymodem.NewSession(reader, writer, store,
		ymodem.WithConfig(sessionCfg),
		ymodem.WithCallbacks(callbacks),
		ymodem.WithContext(ctx),
		ymodem.WithSessionLogger(logger),
	)

	result, err := session.Receive(ctx)
	if err == nil && store.Err() != nil {
		err = &ymodem.Error{Type: ymodem.ErrWrite, Message: store.Err().Error(), Status: result.Status}
	}

	if cfg.Notify.URL != "" {
		if nerr := publish(cfg.Notify, notify.NewTransferEvent(source, result, store.Location(), err)); nerr != nil {
			logger.Error("receive: notify: %v", nerr)
		}
	}

	if !c.Bool("quiet") {
		fmt.Fprintln(os.Stderr, renderSummary(result, store.Location(), err))
	}

	if code := exitCode(err); code != 0 {
		return cli.Exit("", code)
	}
	return nil
}

// applyFlags copies explicitly set flags over file values.
func applyFlags(c *cli.Context, cfg *config.Config) {
	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setInt := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	setBool := func(name string, dst *bool) {
		if c.IsSet(name) {
			*dst = c.Bool(name)
		}
	}

	setString("port", &cfg.Port.Device)
	setInt("baud", &cfg.Port.Baud)
	setInt("data-bits", &cfg.Port.DataBits)
	setString("parity", &cfg.Port.Parity)
	setInt("stop-bits", &cfg.Port.StopBits)

	if c.IsSet("timeout") {
		cfg.Receive.Timeout.Duration = c.Duration("timeout")
	}
	setInt("max-polls", &cfg.Receive.MaxPolls)
	setInt("max-errors", &cfg.Receive.MaxErrors)
	setBool("trace-wire", &cfg.Receive.TraceWire)

	if c.IsSet("s3") {
		cfg.Storage.Backend = "s3"
		cfg.Storage.Path = c.String("s3")
	} else if c.IsSet("dir") {
		cfg.Storage.Backend = "dir"
		cfg.Storage.Path = c.String("dir")
	}
	setString("s3-region", &cfg.Storage.Region)
	setString("s3-endpoint", &cfg.Storage.Endpoint)
	setBool("s3-path-style", &cfg.Storage.S3PathStyle)
	if c.IsSet("max-size") {
		cfg.Storage.MaxSize = c.Uint64("max-size")
	}
	setBool("overwrite", &cfg.Storage.Overwrite)

	setString("redis-url", &cfg.Notify.URL)
	setString("redis-channel", &cfg.Notify.Channel)
	setString("redis-encoding", &cfg.Notify.Encoding)
	setString("metrics-addr", &cfg.Metrics.Addr)

	setString("log-level", &cfg.Log.Level)
	setString("log-file", &cfg.Log.File)
}

// applyDefaults fills what neither the file nor the flags set.
func applyDefaults(cfg *config.Config) {
	port := serialport.DefaultConfig()
	if cfg.Port.Baud == 0 {
		cfg.Port.Baud = port.Baud
	}
	if cfg.Port.DataBits == 0 {
		cfg.Port.DataBits = port.DataBits
	}
	if cfg.Port.Parity == "" {
		cfg.Port.Parity = port.Parity
	}
	if cfg.Port.StopBits == 0 {
		cfg.Port.StopBits = port.StopBits
	}

	rx := ymodem.DefaultConfig()
	if cfg.Receive.Timeout.Duration == 0 {
		cfg.Receive.Timeout.Duration = rx.Timeout
	}
	if cfg.Receive.MaxPolls == 0 {
		cfg.Receive.MaxPolls = rx.MaxPolls
	}
	if cfg.Receive.MaxErrors == 0 {
		cfg.Receive.MaxErrors = rx.MaxErrors
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "dir"
	}
	if cfg.Storage.Backend == "dir" && cfg.Storage.Path == "" {
		cfg.Storage.Path = "."
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
}

// newLogger logs to stderr, or to a JSON file when one is configured.
// stdout may be the transport, so nothing is ever logged there.
func newLogger(cfg config.LogConfig) (ymodem.Logger, func(), error) {
	if cfg.File != "" {
		fl, err := ymodem.NewFileLogger(cfg.File)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return fl, func() { _ = fl.Close() }, nil
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q", cfg.Level)
	}
	zl := ymodem.NewZapLogger(ymodem.NewJSONLogger(os.Stderr, level))
	return zl, func() { _ = zl.Sync() }, nil
}

// openTransport opens the serial port, or puts the controlling terminal in
// raw mode and uses stdin/stdout.
func openTransport(cfg config.PortConfig) (ymodem.ReaderWithTimeout, io.Writer, string, func(), error) {
	if cfg.Device != "" {
		port, err := serialport.Open(cfg.Device, serialport.Config{
			Baud:     cfg.Baud,
			DataBits: cfg.DataBits,
			Parity:   cfg.Parity,
			StopBits: cfg.StopBits,
		})
		if err != nil {
			return nil, nil, "", nil, err
		}
		return port, port, cfg.Device, func() { _ = port.Close() }, nil
	}

	restore := func() {}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return nil, nil, "", nil, fmt.Errorf("set raw terminal mode: %w", err)
		}
		restore = func() { _ = term.Restore(fd, oldState) }
	}
	return ymodem.NewDeadlineReader(os.Stdin), os.Stdout, "stdin", restore, nil
}

func newSink(ctx context.Context, cfg config.StorageConfig, logger ymodem.Logger) (sink.Sink, error) {
	if cfg.Backend == "s3" {
		bucket, prefix := sink.ParseS3Path(cfg.Path)
		return sink.NewS3(ctx, sink.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
			MaxSize:      cfg.MaxSize,
			Logger:       logger,
		})
	}
	return sink.NewDir(sink.DirConfig{
		Root:      cfg.Path,
		MaxSize:   cfg.MaxSize,
		Overwrite: cfg.Overwrite,
		Logger:    logger,
	})
}

// serveMetrics starts the metrics listener and returns its shutdown func.
func serveMetrics(addr string, collector *metrics.Collector, logger ymodem.Logger) func() {
	r := chi.NewRouter()
	r.Handle("/metrics", collector.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func publish(cfg config.NotifyConfig, event *notify.TransferEvent) error {
	ncfg := notify.Config{
		URL:      cfg.URL,
		Channel:  cfg.Channel,
		Encoding: cfg.Encoding,
		Timeout:  cfg.Timeout.Duration,
		Retries:  notify.DefaultRetries,
	}
	if cfg.Retries != nil {
		ncfg.Retries = *cfg.Retries
	}

	r, err := notify.New(ncfg)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	// the receive context may already be cancelled
	return r.Publish(context.Background(), event)
}

// exitCode maps a receive error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *ymodem.Error
	if errors.As(err, &e) {
		switch e.Type {
		case ymodem.ErrCancelled:
			return 2
		case ymodem.ErrSize:
			return 3
		case ymodem.ErrWrite:
			return 4
		case ymodem.ErrTimeout:
			return 5
		}
	}
	return 1
}
