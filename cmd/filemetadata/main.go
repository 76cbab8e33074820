// Package main provides a command-line front-end for the metadata service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/VinodKandula/file-metadata-app/internal/config"
	"github.com/VinodKandula/file-metadata-app/internal/logging"
	"github.com/VinodKandula/file-metadata-app/internal/view"
	"github.com/VinodKandula/file-metadata-app/pkg/client"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	baseURL := flag.String("base", cfg.BaseURL, "Metadata service base URL")
	token := flag.String("token", cfg.AuthToken, "Bearer token")
	verbose := flag.Bool("v", false, "Log requests to stderr")
	flag.Usage = printUsage
	flag.Parse()

	if *verbose {
		logging.Init(logging.Config{Level: "debug", Format: "console", OutputPath: "stderr"})
	} else {
		logging.InitNop()
	}
	defer logging.Sync()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := client.New(client.Config{
		BaseURL:   *baseURL,
		Timeout:   cfg.ClientTimeout,
		AuthToken: *token,
		Logger:    logging.Named("client"),
	})
	v := view.New(c, view.WithLogger(logging.Named("view")))

	var kind view.Kind
	switch args[0] {
	case "file", "f":
		kind = view.KindFile
	case "dir", "directory", "d":
		kind = view.KindDirectory
	case "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	// A missing path is still sent; the service decides what it means.
	path := ""
	if len(args) > 1 {
		path = args[1]
	}

	os.Exit(run(v, kind, path, os.Stdout, os.Stderr))
}

// run performs one lookup through the view and prints its outcome.
func run(v *view.View, kind view.Kind, path string, stdout, stderr io.Writer) int {
	if kind == view.KindDirectory {
		v.SetDirPath(path)
	} else {
		v.SetFilePath(path)
	}
	<-v.Get(context.Background(), kind)

	st := v.State(kind)
	if st.ErrorMessage != "" {
		fmt.Fprintf(stderr, "Error: %s\n", st.ErrorMessage)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	for _, doc := range st.Results {
		if err := enc.Encode(doc); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

func printUsage() {
	fmt.Println(`File metadata CLI

Usage: filemetadata [flags] <command> <path>

Flags:
  -base <url>     Service base URL (default: $BASE_URL or http://localhost:8080/filemetadata)
  -token <token>  Bearer token (default: $AUTH_TOKEN)
  -v              Log requests to stderr

Commands:
  file <path>     Show metadata for a file
  dir <path>      Show metadata for a directory and everything below it`)
}
