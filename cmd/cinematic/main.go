package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bdobrica/Cinematic/common/environment"
	"github.com/bdobrica/Cinematic/common/version"
	"github.com/bdobrica/Cinematic/internal/cinematic/app"
	"github.com/bdobrica/Cinematic/internal/cinematic/config"
)

func main() {
	fmt.Printf("Cinematic Media Assistant\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	configPath := flag.String("config", environment.StringOr("CINEMATIC_CONFIG", "cinematic.yaml"), "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Matrix.Homeserver == "" {
		fmt.Fprintf(os.Stderr, "Error: matrix homeserver is required (MATRIX_HOMESERVER)\n")
		os.Exit(1)
	}
	if cfg.Matrix.UserID == "" {
		fmt.Fprintf(os.Stderr, "Error: matrix user ID is required (MATRIX_USER_ID)\n")
		os.Exit(1)
	}
	if cfg.Matrix.AccessToken == "" {
		fmt.Fprintf(os.Stderr, "Error: matrix access token is required (MATRIX_ACCESS_TOKEN)\n")
		os.Exit(1)
	}
	if len(cfg.Matrix.Rooms) == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one matrix room must be configured\n")
		os.Exit(1)
	}

	cinematic, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Cinematic: %v\n", err)
		os.Exit(1)
	}
	defer cinematic.Stop()

	if err := cinematic.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Cinematic: %v\n", err)
		os.Exit(1)
	}
}
