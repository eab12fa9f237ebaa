package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/antibyte/retrocalc/pkg/auth"
	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/console"
	"github.com/antibyte/retrocalc/pkg/history"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/terminal"
	tlsmanager "github.com/antibyte/retrocalc/pkg/tls"

	"github.com/google/uuid"
)

const usage = `usage: retrocalc [-config settings.cfg] [command]

commands:
  (none)                 interactive calculator on stdin/stdout
  serve                  websocket calculator server
  hash-password <pw>     print a bcrypt hash for [Auth] password_hash
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run returns the process exit status: 0 on quit or end of input, 1 on a
// fatal error, 2 on a panic
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "Error : Unknown exception: %v\n", r)
			code = 2
		}
	}()

	fs := flag.NewFlagSet("retrocalc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "settings.cfg", "configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if err := configuration.Initialize(*configPath); err != nil {
		fmt.Fprintf(stderr, "Error initializing configuration: %v\n", err)
		return 1
	}
	if err := logger.Initialize(); err != nil {
		fmt.Fprintf(stderr, "Error initializing logger: %v\n", err)
		return 1
	}
	defer logger.Close()
	logger.ConfigInfo("Configuration loaded from: %s", *configPath)

	command := fs.Arg(0)
	if command == "" && configuration.GetString("Server", "mode", "console") == "websocket" {
		command = "serve"
	}

	switch command {
	case "":
		return runConsole(stdin, stdout, stderr)
	case "serve":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := serve(ctx); err != nil {
			fmt.Fprintf(stderr, "Error : %v\n", err)
			return 1
		}
		return 0
	case "hash-password":
		if fs.NArg() != 2 {
			fmt.Fprint(stderr, usage)
			return 1
		}
		hash, err := auth.HashPassword(fs.Arg(1))
		if err != nil {
			fmt.Fprintf(stderr, "Error : %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, hash)
		return 0
	default:
		fmt.Fprint(stderr, usage)
		return 1
	}
}

// openHistory opens the transcript store when [History] enabled is set
func openHistory() (*history.Store, error) {
	if !configuration.GetBool("History", "enabled", false) {
		return nil, nil
	}
	return history.Open(configuration.GetString("History", "database", "retrocalc.db"))
}

func runConsole(stdin io.Reader, stdout, stderr io.Writer) int {
	errorPrefix := configuration.GetString("Calculator", "error_prefix", console.DefaultErrorPrefix)
	in := bufio.NewReader(stdin)
	out := console.NewStreamOutput(stdout, stderr, errorPrefix)

	opts := []console.Option{
		console.WithPrompt(configuration.GetString("Calculator", "prompt", console.DefaultPrompt)),
		console.WithResultMarker(configuration.GetString("Calculator", "result_marker", console.DefaultResultMarker)),
	}
	store, err := openHistory()
	if err != nil {
		// the calculator works without a transcript
		logger.HistoryError("History disabled: %v", err)
	} else if store != nil {
		defer store.Close()
		opts = append(opts, console.WithRecorder(store))
	}

	session := console.NewSession(uuid.NewString(), in, out, opts...)
	if err := session.Run(context.Background()); err != nil {
		logger.Error(logger.AreaConsole, "Session failed: %v", err)
		fmt.Fprintf(stderr, "%s%v\n", errorPrefix, err)
		fmt.Fprintln(stdout, "Enter ~ to exit.")
		console.DrainUntilExit(in, exitMarker())
		return 1
	}
	return 0
}

func exitMarker() rune {
	marker := configuration.GetString("Calculator", "exit_marker", "~")
	r, _ := utf8.DecodeRuneInString(marker)
	if r == utf8.RuneError {
		return '~'
	}
	return r
}

// serve runs the websocket server until ctx is cancelled
func serve(ctx context.Context) error {
	var opts []terminal.Option
	store, err := openHistory()
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if store != nil {
		defer store.Close()
		opts = append(opts, terminal.WithRecorder(store), terminal.WithTranscript(store))
	}
	handler := terminal.NewHandler(opts...)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.HandleWebSocket)
	mux.HandleFunc("/api/auth/login", auth.HandleLogin)
	mux.HandleFunc("/api/auth/session", auth.HandleGuestSession)
	mux.HandleFunc("/api/auth/validate", auth.HandleTokenValidation)
	mux.HandleFunc("/api/auth/logout", auth.HandleLogout)
	mux.HandleFunc("/api/history", auth.RequireToken(handler.HandleHistory))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "ok %d\n", handler.ActiveSessions())
	})

	tlsManager, err := tlsmanager.NewManager(tlsmanager.LoadConfig())
	if err != nil {
		return err
	}

	port := configuration.GetString("Server", "http_port", "8080")
	servers := []*http.Server{{
		Addr:              ":" + port,
		Handler:           tlsManager.PlainHandler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	errCh := make(chan error, 2)
	go func() {
		logger.Info(logger.AreaGeneral, "Starting HTTP server on port %s", port)
		errCh <- servers[0].ListenAndServe()
	}()

	if tlsManager.Enabled() {
		httpsSrv := &http.Server{
			Addr:              ":" + tlsManager.HTTPSPort(),
			Handler:           mux,
			TLSConfig:         tlsManager.TLSConfig(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		servers = append(servers, httpsSrv)
		go func() {
			logger.Info(logger.AreaGeneral, "Starting HTTPS server on port %s", tlsManager.HTTPSPort())
			certFile, keyFile := tlsManager.CertFiles()
			errCh <- httpsSrv.ListenAndServeTLS(certFile, keyFile)
		}()
	}

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("HTTP server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info(logger.AreaGeneral, "Shutting down, %d active sessions", handler.ActiveSessions())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	handler.Shutdown()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}
