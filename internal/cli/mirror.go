package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sito/internal/manifest"
	"github.com/ppiankov/sito/internal/pipeline"
	"github.com/ppiankov/sito/internal/resource"
	"github.com/ppiankov/sito/internal/worker"
)

var (
	mirrorOutputDir   string
	mirrorOut         string
	mirrorFromList    string
	mirrorConcurrency int
	mirrorTimeout     time.Duration
)

// mirrorCmd represents the mirror command
var mirrorCmd = &cobra.Command{
	Use:   "mirror [manifest.yaml]",
	Short: "Retrieve every resource of a manifest into a directory",
	Long: `Mirror retrieves each entry of a manifest into <output-dir>/<key>
concurrently and writes a manifest of the local copies.

Instead of a manifest, --from-list reads URIs one per line; each is stored
under <host>/<path>.

Example:
  sito mirror site.yaml --output-dir ./mirror --out ./mirror/manifest.yaml
  sito mirror --from-list urls.txt --output-dir ./downloads --concurrency 8`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMirror,
}

func init() {
	rootCmd.AddCommand(mirrorCmd)

	mirrorCmd.Flags().StringVar(&mirrorOutputDir, "output-dir", "", "directory to mirror into (required)")
	mirrorCmd.Flags().StringVar(&mirrorOut, "out", "", "write the manifest of local copies to this file")
	mirrorCmd.Flags().StringVar(&mirrorFromList, "from-list", "", "read URIs from a file instead of a manifest")
	mirrorCmd.Flags().IntVar(&mirrorConcurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	mirrorCmd.Flags().DurationVar(&mirrorTimeout, "timeout", 30*time.Minute, "total timeout")
	_ = mirrorCmd.MarkFlagRequired("output-dir")
}

func runMirror(cmd *cobra.Command, args []string) error {
	if (len(args) == 0) == (mirrorFromList == "") {
		return errors.New("pass either a manifest file or --from-list")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), mirrorTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if mirrorConcurrency > 0 {
		cfg.Concurrency.Workers = mirrorConcurrency
	}
	logger := newLogger(cfg)

	var tree *manifest.Tree
	if mirrorFromList != "" {
		tree, err = treeFromList(mirrorFromList)
	} else {
		tree, err = manifest.LoadFile(args[0])
	}
	if err != nil {
		return err
	}

	logger.Info("mirroring", "entries", tree.Len(), "files", tree.CountFiles(), "workers", cfg.Concurrency.Workers, "output", mirrorOutputDir)

	p, err := pipeline.NewPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}

	result, err := p.Mirror(ctx, tree, mirrorOutputDir)
	if err != nil && result == nil {
		return err
	}

	if mirrorOut != "" {
		if err := manifest.SaveFile(mirrorOut, result.Tree); err != nil {
			return err
		}
		logger.Info("wrote manifest", "path", mirrorOut)
	}

	keys := make([]string, 0, len(result.Failures))
	for key := range result.Failures {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Fprintf(os.Stderr, "✗ %s: %v\n", key, result.Failures[key])
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Mirrored %d of %d entries into %s\n", result.Tree.Len(), tree.Len(), mirrorOutputDir)

	if err != nil {
		return err
	}
	if len(keys) > 0 {
		return fmt.Errorf("%d entries failed", len(keys))
	}
	return nil
}

// treeFromList builds a manifest from a URI list, keyed by host and path
func treeFromList(path string) (*manifest.Tree, error) {
	uris, err := worker.ReadURIsFromFile(path)
	if err != nil {
		return nil, err
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}

	tree := manifest.New(resource.FileURI(wd))
	for _, uri := range uris {
		r := resource.New(uri)
		key := filepath.ToSlash(worker.DestinationFor("", r))
		if tree.Has(key) {
			return nil, fmt.Errorf("%s and another URI both map to %q", uri, key)
		}
		if err := tree.Set(key, r); err != nil {
			return nil, fmt.Errorf("add %s: %w", uri, err)
		}
	}
	return tree, nil
}
