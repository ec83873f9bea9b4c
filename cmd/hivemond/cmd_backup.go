package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/GaiaForge/beehive-monitoring/internal/backup"
	"github.com/GaiaForge/beehive-monitoring/internal/server"
)

// runBackup implements `hivemond backup [-config path] [-out path]`.
// It archives the database and the learning state files. Run it while the
// daemon is stopped, or accept a WAL-consistent snapshot of a live database.
func runBackup(args []string) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	out := fs.String("out", "", "output archive path (default hivemon-backup-<date>.tar.gz)")
	_ = fs.Parse(args)

	viperCfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	archivePath := *out
	if archivePath == "" {
		archivePath = fmt.Sprintf("hivemon-backup-%s.tar.gz", time.Now().Format("2006-01-02"))
	}

	err = backup.Backup(context.Background(), archivePath,
		viperCfg.GetString("database.dsn"),
		viperCfg.GetString("plugins.learning.state_file"),
		viperCfg.GetString("plugins.learning.mirror_file"),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("backup written to %s\n", archivePath)
}

// runRestore implements `hivemond restore -archive path [-target dir] [-force]`.
func runRestore(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	archivePath := fs.String("archive", "", "backup archive to restore (required)")
	target := fs.String("target", "./data", "directory to restore into")
	force := fs.Bool("force", false, "overwrite existing files")
	_ = fs.Parse(args)

	if *archivePath == "" {
		fmt.Fprintln(os.Stderr, "restore: -archive is required")
		fs.Usage()
		os.Exit(2)
	}

	if err := backup.Restore(context.Background(), *archivePath, *target, *force); err != nil {
		fmt.Fprintf(os.Stderr, "restore failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("restored %s into %s\n", *archivePath, *target)
}
