// Command mlengine runs the student performance training pipeline and serves predictions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"mlengine/pkg/config"
	"mlengine/pkg/ledger"
	"mlengine/pkg/logx"
	"mlengine/pkg/metrics"
	"mlengine/pkg/pipeline"
	"mlengine/pkg/predict"
	"mlengine/pkg/telemetry"
	"mlengine/pkg/version"
	"mlengine/pkg/webui"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage marks command line mistakes.
var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var err error
	switch {
	case len(args) == 0:
		printUsage(stderr)
		return exitUsage
	case args[0] == "-version" || args[0] == "--version":
		fmt.Fprintln(stdout, version.String())
		return exitOK
	case args[0] == "-h" || args[0] == "-help" || args[0] == "--help" || args[0] == "help":
		printUsage(stdout)
		return exitOK
	case args[0] == "run":
		err = runPipeline(ctx, args[1:], stderr)
	case args[0] == "serve":
		err = serve(ctx, args[1:], stderr)
	case args[0] == "stages":
		err = listStages(stdout)
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", args[0])
		printUsage(stderr)
		return exitUsage
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "mlengine - student performance training pipeline\n\n")
	fmt.Fprintf(w, "Usage:\n")
	fmt.Fprintf(w, "  mlengine run [-config path] [-projectdir dir] [-tee] [stage ...]\n")
	fmt.Fprintf(w, "  mlengine serve [-config path] [-projectdir dir] [-addr :8080]\n")
	fmt.Fprintf(w, "  mlengine stages\n")
	fmt.Fprintf(w, "  mlengine -version\n\n")
	fmt.Fprintf(w, "Without stage names, run executes every stage in pipeline order.\n")
}

// commonFlags are shared by run and serve.
type commonFlags struct {
	configPath string
	projectDir string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", config.DefaultSettingsFile, "Settings file, relative to the project directory")
	fs.StringVar(&c.projectDir, "projectdir", ".", "Project directory; relative settings paths resolve against it")
}

// load switches to the project directory and loads the settings.
func (c *commonFlags) load() (*config.Settings, error) {
	if c.projectDir != "" && c.projectDir != "." {
		if err := os.Chdir(c.projectDir); err != nil {
			return nil, fmt.Errorf("failed to enter project directory: %w", err)
		}
	}
	return config.Load(filepath.Clean(c.configPath))
}

func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) error {
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func runPipeline(ctx context.Context, args []string, stderr io.Writer) error {
	var (
		common commonFlags
		tee    bool
	)
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	common.register(fs)
	fs.BoolVar(&tee, "tee", false, "Mirror log lines to stderr")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}

	names := fs.Args()
	if len(names) == 0 {
		for _, n := range pipeline.AllStages() {
			names = append(names, n.String())
		}
	}
	for _, name := range names {
		if _, err := pipeline.ParseStageName(name); err != nil {
			return err
		}
	}

	settings, err := common.load()
	if err != nil {
		return err
	}

	logPath, err := logx.InitializeLogFile(settings.Logging.Dir.String(), tee || settings.Logging.Tee)
	if err != nil {
		return err
	}
	defer func() { _ = logx.CloseLogFile() }()
	logger := logx.NewLogger("mlengine")
	logger.Info("Logging to %s", logPath)
	logDigest(logger, settings)

	shutdown, err := telemetry.Setup(ctx, settings.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("Telemetry shutdown failed: %v", err)
		}
	}()

	recorder := metrics.NewRecorder(nil)
	hooks := []pipeline.Hook{recorder}
	if settings.Ledger.Driver != "" {
		l, err := ledger.Open(ctx, settings.Ledger.Driver, settings.Ledger.DSN)
		if err != nil {
			return err
		}
		defer func() { _ = l.Close() }()
		hooks = append(hooks, l)
	}

	runner := pipeline.NewRunner(pipeline.WithHooks(hooks...))
	logger.Info("Run %s: %v", runner.RunID(), names)
	runErr := pipeline.NewDispatcher(settings, pipeline.WithRunner(runner)).RunAll(ctx, names)

	if path := settings.Telemetry.MetricsTextfile.String(); path != "" {
		if err := recorder.WriteTextfile(path); err != nil {
			logger.Warn("Failed to write metrics textfile: %v", err)
		}
	}
	return runErr
}

func serve(ctx context.Context, args []string, stderr io.Writer) error {
	var (
		common commonFlags
		addr   string
	)
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	common.register(fs)
	fs.StringVar(&addr, "addr", "", "Listen address (default: webapp.addr from the settings)")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: serve takes no arguments", errUsage)
	}

	settings, err := common.load()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = settings.WebApp.Addr
	}

	svc, err := predict.NewService(settings)
	if err != nil {
		return err
	}
	gatherer := metrics.ServeGatherer(settings.Telemetry.MetricsTextfile.String())
	return webui.NewServer(svc, gatherer).ListenAndServe(ctx, addr)
}

type digester interface {
	Digest() (string, error)
}

func logDigest(logger *logx.Logger, s digester) {
	digest, err := s.Digest()
	if err != nil {
		logger.Warn("Failed to compute settings digest: %v", err)
		return
	}
	logger.Info("Settings digest %s", digest)
}

func listStages(stdout io.Writer) error {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, n := range pipeline.AllStages() {
		fmt.Fprintf(tw, "%s\t%s\n", n, n.Label())
	}
	return tw.Flush()
}
