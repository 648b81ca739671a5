package main

import (
	"errors"
	"fmt"

	"cmsdl/pkg/catalog"
	"cmsdl/pkg/logger"
	"cmsdl/pkg/ui"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or reset the cached course list",
	Long: `The list of registered courses is fetched once and cached. Clear the
cache after registering for new courses so the next sync refetches it.`,
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List cached courses",
	Args:  cobra.NoArgs,
	RunE:  runCacheShow,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the course cache",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openCache(cmd *cobra.Command) (*catalog.Cache, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return catalog.NewCache(cfg.Cache.CoursesFile, "", nil, nil, logger.GetLogger()), nil
}

func runCacheShow(cmd *cobra.Command, args []string) error {
	cache, err := openCache(cmd)
	if err != nil {
		return err
	}

	cat, err := cache.Load()
	if errors.Is(err, catalog.ErrNotCached) {
		ui.PrintWarning("No cached courses", cache.Path())
		return nil
	}
	if err != nil {
		return err
	}

	ui.PrintHighlight(fmt.Sprintf("%d cached courses", cat.Len()))
	for _, e := range cat.Entries() {
		fmt.Fprintf(ui.Stdout, "  %s\n    %s\n", e.Name, ui.Dim(e.URL))
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cache, err := openCache(cmd)
	if err != nil {
		return err
	}
	if err := cache.Clear(); err != nil {
		return err
	}
	ui.PrintSuccess("Course cache cleared")
	return nil
}
