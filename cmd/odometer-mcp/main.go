package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/ironsheep/odometer-mcp/internal/config"
	"github.com/ironsheep/odometer-mcp/internal/detector"
	"github.com/ironsheep/odometer-mcp/internal/history"
	"github.com/ironsheep/odometer-mcp/internal/imaging"
	"github.com/ironsheep/odometer-mcp/internal/pipeline"
	"github.com/ironsheep/odometer-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("odometer-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	os.Exit(run(os.Args[1:]))
}

// run wires the reader together and returns the process exit code. Deferred
// closes always run before main exits.
func run(args []string) int {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Printf("Configuration error: %v", err)
		return 2
	}
	if cfg.Debug {
		log.Printf("Odometer MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	det, err := loadDetector(cfg)
	if err != nil {
		log.Printf("Detection model unavailable: %v", err)
	}
	if det != nil {
		defer det.Close()
	}
	pipe := pipeline.New(det, pipeline.OptionsFromConfig(cfg))

	if len(args) > 0 && args[0] == "read" {
		if len(args) != 2 {
			log.Print("usage: odometer-mcp read <image>")
			return 2
		}
		if err := readOnce(cfg, pipe, args[1]); err != nil {
			log.Printf("Read failed: %v", err)
			return 1
		}
		return 0
	}

	hist, err := history.New(cfg.HistoryLimit)
	if err != nil {
		log.Printf("Failed to open reading history: %v", err)
		return 1
	}
	defer hist.Close()

	server.Version = Version
	srv := server.New(cfg, pipe, hist)
	defer srv.Close()
	if err := srv.Run(); err != nil {
		log.Printf("Server error: %v", err)
		return 1
	}
	return 0
}

// loadDetector returns nil without error when no model is configured.
func loadDetector(cfg config.Config) (detector.Detector, error) {
	if cfg.ModelPath == "" {
		return nil, nil
	}
	d, err := detector.LoadFile(cfg.ModelPath, detector.Options{
		Backend:   cfg.Backend,
		InputSize: cfg.InputSize,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		log.Printf("Loaded %s model %s (input %dpx)", cfg.Backend, cfg.ModelPath, d.InputSize())
	}
	return detector.NewGuarded(d), nil
}

func readOnce(cfg config.Config, pipe *pipeline.Pipeline, path string) error {
	img, err := imaging.Decode(path, cfg.MaxDecodeDim)
	if err != nil {
		return err
	}
	result, err := pipe.Run(img)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func printHelp() {
	fmt.Println("odometer-mcp - MCP server that reads odometer photos")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  odometer-mcp                 Serve MCP over stdin/stdout")
	fmt.Println("  odometer-mcp read <image>    Read one photo and print the result as JSON")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  ODOMETER_MCP_MODEL_PATH=<file>       Detection model (required for readings)")
	fmt.Println("  ODOMETER_MCP_BACKEND=tflite|opencv   Inference backend (default tflite)")
	fmt.Println("  ODOMETER_MCP_INPUT_SIZE=640          Model input edge in pixels")
	fmt.Println("  ODOMETER_MCP_CONF_THRESHOLD=0.3      Minimum class score")
	fmt.Println("  ODOMETER_MCP_IOU_THRESHOLD=0.5       NMS overlap threshold")
	fmt.Println("  ODOMETER_MCP_CROSS_CLASS_NMS=true    Suppress across labels")
	fmt.Println("  ODOMETER_MCP_CROP_MARGIN=60          Extra pixels around the center crop")
	fmt.Println("  ODOMETER_MCP_MIN_ASPECT=0.6          Smallest width/height for the crop pass")
	fmt.Println("  ODOMETER_MCP_MAX_ASPECT=1.7          Largest width/height for the crop pass")
	fmt.Println("  ODOMETER_MCP_MAX_DECODE_DIM=1600     Downsample photos larger than this")
	fmt.Println("  ODOMETER_MCP_CACHE_SIZE=4            Decoded photos kept in memory")
	fmt.Println("  ODOMETER_MCP_HISTORY_LIMIT=5         Default odometer_history size")
	fmt.Println("  ODOMETER_MCP_LOG_LEVEL=debug         Enable debug logging")
	fmt.Println()
	fmt.Println("The server reads without a model but every reading fails with")
	fmt.Println("\"model unavailable\". Configure it in your MCP client (e.g., Claude Desktop).")
}
