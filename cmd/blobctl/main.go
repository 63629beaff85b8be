package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/blobstore/rpc"
)

const usage = `Usage: blobctl <command> [flags] <hash>

Commands:
  get    Write the record stored under <hash> to stdout
  put    Store stdin (or -file) under <hash>

Common flags:
  -server   Server base URL (default http://localhost:3000, env BLOBSTORE_URL)
  -token    Bearer token (env BLOBSTORE_TOKEN)
  -timeout  Request timeout (default 30s)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "get":
		err = runGet(ctx, os.Args[2:])
	case "put":
		err = runPut(ctx, os.Args[2:])
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "blobctl: %v\n", err)
		os.Exit(exitCode(err))
	}
}

type commonFlags struct {
	server  string
	token   string
	timeout time.Duration
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.server, "server", envOr("BLOBSTORE_URL", "http://localhost:3000"), "Server base URL")
	fs.StringVar(&c.token, "token", os.Getenv("BLOBSTORE_TOKEN"), "Bearer token")
	fs.DurationVar(&c.timeout, "timeout", 30*time.Second, "Request timeout")
}

func (c *commonFlags) client() *rpc.Client {
	return rpc.NewClient(&http.Client{Timeout: c.timeout}, c.server, c.token)
}

func runGet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	showSource := fs.Bool("source", false, "Print the serving tier to stderr")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("get: expected exactly one hash")
	}

	rec, err := common.client().Get(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if *showSource {
		fmt.Fprintf(os.Stderr, "source: %s\n", rec.Source)
	}

	_, err = os.Stdout.Write(rec.Payload)
	return err
}

func runPut(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("put", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	file := fs.String("file", "", "Read the payload from this file instead of stdin")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("put: expected exactly one hash")
	}

	var (
		payload []byte
		err     error
	)
	if *file != "" {
		payload, err = os.ReadFile(*file)
	} else {
		payload, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	msg, err := common.client().Put(ctx, fs.Arg(0), payload)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

// exitCode distinguishes a missing record and a conflict from other failures.
func exitCode(err error) int {
	switch connect.CodeOf(err) {
	case connect.CodeNotFound:
		return 3
	case connect.CodeAlreadyExists:
		return 4
	default:
		return 1
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
