package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"imusic/cmd"
	"imusic/config"
	"imusic/logging"
	"imusic/services"
	"imusic/storage"
	"imusic/types"

	"github.com/schollz/progressbar/v3"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses args, runs the selected mode and returns the exit code
func run(args []string) int {
	var (
		scan       string
		server     bool
		port       int
		configPath string
	)

	fs := flag.NewFlagSet("imusic", flag.ContinueOnError)
	fs.StringVar(&scan, "scan", "", "Import a music folder into the library and exit")
	fs.BoolVar(&server, "server", false, "Start in web server mode (default when -scan is not given)")
	fs.IntVar(&port, "port", 0, "Port for web server mode (default $SERVER_PORT or 8080)")
	fs.StringVar(&configPath, "config", "", "Path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := config.Init(configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logger := logging.Setup(config.GetLogLevel())

	if scan != "" && server {
		logger.Error("-scan and -server cannot be combined")
		fs.Usage()
		return 2
	}

	if scan != "" {
		if err := importFolder(scan); err != nil {
			logger.Error("import failed", "folder", scan, "error", err)
			return 1
		}
		return 0
	}

	if port == 0 {
		port = config.GetPort()
	}
	if err := cmd.StartWebServer(port, logger); err != nil {
		logger.Error("server stopped", "error", err)
		return 1
	}
	return 0
}

// importFolder scans root in the foreground with a terminal progress bar
func importFolder(root string) error {
	if err := config.ValidateLibraryPath(root); err != nil {
		return err
	}

	db, err := storage.NewDBClient()
	if err != nil {
		return err
	}
	defer db.Close()

	files, err := services.NewLibraryService().ScanAudioFiles(root)
	if err != nil {
		return err
	}

	bar := progressbar.Default(int64(len(files)), "importing")
	result, err := services.ImportFiles(db, files, func(n int, file types.AudioFile, created bool) {
		bar.Describe(file.Filename)
		bar.Add(1)
	})
	bar.Finish()
	if err != nil {
		return err
	}

	slog.Info("import finished", "folder", root, "found", len(files), "added", result.Added, "skipped", result.Skipped)
	return nil
}
