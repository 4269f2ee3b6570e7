// Command voxeld serves the voxel cutout REST protocol over a local
// Badger-backed store.

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/voxelio/voxeld/server"
	"github.com/voxelio/voxeld/storage"
	"github.com/voxelio/voxeld/voxel"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Path to the TOML configuration file.
	configFile = flag.String("config", "", "")

	// Address for http communication; overrides the config file.
	httpAddress = flag.String("http", "", "")
)

const helpMessage = `
voxeld serves N-dimensional voxel volumes over a versioned REST protocol

Usage: voxeld [options] serve

      -config     =string   Path to TOML configuration file (required).
      -http       =string   Address for HTTP communication; overrides config.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message.
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, helpMessage)
	}
	flag.Parse()

	if *showHelp || flag.NArg() != 1 || flag.Arg(0) != "serve" {
		flag.Usage()
		if *showHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if *runVerbose {
		voxel.SetLogMode(voxel.DebugMode)
	}

	config, err := server.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not load configuration: %v\n", err)
		os.Exit(1)
	}
	config.Logging.SetLogger()
	if *httpAddress != "" {
		config.Server.HTTPAddress = *httpAddress
	}

	store, err := storage.OpenBadgerStore(config.Store)
	if err != nil {
		voxel.Errorf("Could not open store at %q: %v\n", config.Store.Path, err)
		os.Exit(1)
	}

	// Close the store cleanly on interrupt so badger value logs aren't
	// left mid-write.
	stopSig := make(chan os.Signal, 1)
	signal.Notify(stopSig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stopSig
		voxel.Infof("Captured %v.  Shutting down...\n", sig)
		if err := store.Close(); err != nil {
			voxel.Errorf("Error closing store: %v\n", err)
		}
		os.Exit(0)
	}()

	engine := server.NewEngine(store, config.Server.ChunkSize)
	if err := engine.Serve(config.Server.HTTPAddress); err != nil {
		voxel.Errorf("Server error: %v\n", err)
		store.Close()
		os.Exit(1)
	}
}
