/*
pluginsort - a LOOT-style plugin load-order sorter.

Usage:

	pluginsort sort [flags]
	pluginsort validate <file>
	pluginsort update [flags]
	pluginsort serve [flags]
	pluginsort version
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/pluginsort/core/internal/buildinfo"
	"github.com/pluginsort/core/internal/config"
	"github.com/pluginsort/core/internal/gamestate"
	"github.com/pluginsort/core/internal/gametype"
	"github.com/pluginsort/core/internal/httpapi"
	"github.com/pluginsort/core/internal/loadorderio"
	"github.com/pluginsort/core/internal/logging"
	"github.com/pluginsort/core/internal/masterlistupdate"
	"github.com/pluginsort/core/internal/metadatalist"
	"github.com/pluginsort/core/internal/pluginfile"
	"github.com/pluginsort/core/internal/sorter"
)

var (
	flagGameType     string
	flagGameDir      string
	flagDataDir      string
	flagLocalDir     string
	flagLogDir       string
	flagVerbose      bool
	flagApply        bool
	flagPort         string
	flagRemoteURL    string
	flagRemoteBranch string
	flagSourceDir    string
)

var rootCmd = &cobra.Command{
	Use:   "pluginsort",
	Short: "A LOOT-style plugin load-order sorter",
}

var sortCmd = &cobra.Command{
	Use:   "sort",
	Short: "Compute a new load order for the configured game",
	RunE:  runSort,
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a masterlist or userlist file",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the read-only HTTP data API",
	RunE:  runServe,
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Refresh the masterlist from its configured remote source and report its revision",
	RunE:  runUpdate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(buildinfo.Full())
	},
}

func init() {
	for _, cmd := range []*cobra.Command{sortCmd, serveCmd} {
		cmd.Flags().StringVar(&flagGameType, "game", "tes5", "game type: tes4, tes5, fo3, fonv, fo4")
		cmd.Flags().StringVar(&flagGameDir, "game-dir", "", "game install directory")
		cmd.Flags().StringVar(&flagDataDir, "data-dir", "", "game data directory")
		cmd.Flags().StringVar(&flagLocalDir, "local-dir", "./pluginsort-data", "local app data directory")
		cmd.Flags().StringVar(&flagLogDir, "log-dir", "", "rotated log file directory")
		cmd.Flags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")
	}
	sortCmd.Flags().BoolVar(&flagApply, "apply", false, "write the computed load order back to disk")
	serveCmd.Flags().StringVar(&flagPort, "port", "8080", "listen port")

	updateCmd.Flags().StringVar(&flagLocalDir, "local-dir", "./pluginsort-data", "local app data directory")
	updateCmd.Flags().StringVar(&flagRemoteURL, "remote-url", "", "masterlist remote reference (passed through verbatim to the update collaborator)")
	updateCmd.Flags().StringVar(&flagRemoteBranch, "remote-branch", "master", "masterlist remote branch")
	updateCmd.Flags().StringVar(&flagSourceDir, "source-dir", "", "local directory standing in for the remote-url's checkout (see internal/masterlistupdate)")
	_ = updateCmd.MarkFlagRequired("remote-url")
	_ = updateCmd.MarkFlagRequired("source-dir")

	rootCmd.AddCommand(sortCmd, validateCmd, updateCmd, serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pluginsort:", err)
		os.Exit(1)
	}
}

func buildGame(ctx context.Context) (*gamestate.Game, *logging.Result, error) {
	gt, err := gametype.Parse(flagGameType)
	if err != nil {
		return nil, nil, err
	}
	if flagDataDir == "" {
		flagDataDir = flagGameDir + "/Data"
	}

	logSetup := logging.Setup(logging.Config{LogDir: flagLogDir, Verbose: flagVerbose})

	loh := loadorderio.New()
	if err := loh.Initialize(ctx, gt, flagGameDir, flagLocalDir); err != nil {
		return nil, nil, fmt.Errorf("initialize load order handler: %w", err)
	}

	reader := pluginfile.NewFileReader(flagDataDir)
	game := gamestate.New(gt, flagGameDir, flagDataDir, flagLocalDir, reader, loh, logSetup.Logger)

	cfg := &config.Config{LocalAppDataDir: flagLocalDir, MasterlistFile: "masterlist.yaml", UserlistFile: "userlist.yaml"}
	if ml, err := parseMetadataFile(cfg.MasterlistPath()); err == nil {
		game.Masterlist = ml
	}
	if ul, err := parseMetadataFile(cfg.UserlistPath()); err == nil {
		game.Userlist = ul
	}

	return game, &logSetup, nil
}

func parseMetadataFile(path string) (*metadatalist.MetadataList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return metadatalist.Parse(f)
}

func runSort(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	game, logSetup, err := buildGame(ctx)
	if err != nil {
		return err
	}
	defer logSetup.Cleanup()

	result, err := sorter.Sort(ctx, game, sorter.Options{})
	if err != nil {
		return err
	}

	if flagApply {
		if err := sorter.ApplyLoadOrder(ctx, game, result); err != nil {
			return err
		}
	}

	printSortResult(result)
	return nil
}

func printSortResult(result *sorter.Result) {
	fmt.Println(sorter.Summary(result))
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		for _, name := range result.Order {
			fmt.Println(name)
		}
		return
	}
	for i, p := range result.Plugins {
		fmt.Printf("%4d  %s\n", i+1, p.Name)
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	fmt.Printf("Validating %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	list, err := metadatalist.Parse(f)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		return err
	}
	fmt.Printf("SUCCESS: %d plain entries, %d regex entries, %d global messages\n",
		len(list.Plain), len(list.Regex), len(list.Globals))
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := &config.Config{LocalAppDataDir: flagLocalDir, MasterlistFile: "masterlist.yaml"}

	updater := masterlistupdate.New(map[string]string{flagRemoteURL: flagSourceDir})
	updated, err := updater.Update(ctx, cfg.MasterlistPath(), flagRemoteURL, flagRemoteBranch)
	if err != nil {
		return err
	}

	hash, date, _, err := updater.Revision(ctx, cfg.MasterlistPath(), true)
	if err != nil {
		return err
	}

	if updated {
		fmt.Printf("masterlist updated to revision %s (%s)\n", hash, date)
	} else {
		fmt.Printf("masterlist already at revision %s (%s), no update applied\n", hash, date)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	game, logSetup, err := buildGame(ctx)
	if err != nil {
		return err
	}
	defer logSetup.Cleanup()

	server := httpapi.NewServer(httpapi.Config{Port: flagPort, CORSOrigins: []string{"*"}}, game, logSetup.Logger)
	logSetup.Logger.Info("listening", "port", flagPort)
	return server.ListenAndServe()
}
