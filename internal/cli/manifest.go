package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sito/internal/manifest"
	"github.com/ppiankov/sito/internal/pipeline"
	"github.com/ppiankov/sito/internal/resource"
	"github.com/ppiankov/sito/internal/validate"
)

var (
	manifestOut     string
	manifestTimeout time.Duration
	checkJSON       bool
	checkWorkers    int
)

// manifestCmd represents the manifest command
var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Build and inspect resource manifests",
}

var manifestScanCmd = &cobra.Command{
	Use:   "scan <dir|index-url>",
	Short: "Build a manifest from a directory or an HTML index page",
	Long: `Scan walks a local directory, or reads an HTML directory listing served
over HTTP, and writes a manifest of everything below it.

Example:
  sito manifest scan ./site --out site.yaml
  sito manifest scan https://mirror.example.com/pub/ --out pub.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runManifestScan,
}

var manifestShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Render a manifest as a tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := manifest.LoadFile(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, manifest.Render(tree))
		fmt.Fprintf(out, "\n%d entries, %d files, root %s\n", tree.Len(), tree.CountFiles(), tree.RootKind())
		return nil
	},
}

var manifestCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Probe every entry of a manifest without downloading it",
	Long: `Check stats local entries and sends HEAD requests for http(s) entries,
reporting missing, dead and stale ones. Other schemes are skipped.

Example:
  sito manifest check site.yaml
  sito manifest check site.yaml --json --workers 8`,
	Args: cobra.ExactArgs(1),
	RunE: runManifestCheck,
}

func init() {
	rootCmd.AddCommand(manifestCmd)
	manifestCmd.AddCommand(manifestScanCmd)
	manifestCmd.AddCommand(manifestShowCmd)
	manifestCmd.AddCommand(manifestCheckCmd)

	manifestCheckCmd.Flags().BoolVar(&checkJSON, "json", false, "output JSON")
	manifestCheckCmd.Flags().IntVar(&checkWorkers, "workers", 0, "concurrent probes (default from config)")

	manifestScanCmd.Flags().StringVar(&manifestOut, "out", "", "write the manifest to this file (default: stdout)")
	manifestScanCmd.Flags().DurationVar(&manifestTimeout, "timeout", 2*time.Minute, "timeout for fetching an index page")
}

func runManifestScan(cmd *cobra.Command, args []string) error {
	target := resource.New(args[0])

	var (
		tree *manifest.Tree
		err  error
	)
	if target.LocationKind() == resource.LocNetwork {
		tree, err = scanIndexPage(cmd.Context(), target)
	} else {
		var root string
		if root, err = resource.PathFromFileURI(args[0]); err == nil {
			tree, err = manifest.ScanDir(root)
		}
	}
	if err != nil {
		return err
	}

	if manifestOut == "" {
		return manifest.Save(cmd.OutOrStdout(), tree)
	}
	if err := manifest.SaveFile(manifestOut, tree); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote %d entries to %s\n", tree.Len(), manifestOut)
	return nil
}

// scanIndexPage downloads an index page to a temporary file and parses it
func scanIndexPage(ctx context.Context, target resource.Resource) (*manifest.Tree, error) {
	ctx, cancel := context.WithTimeout(ctx, manifestTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	// index pages change; never serve them from the fetch cache
	cfg.Cache.Enabled = false

	p, err := pipeline.NewPipeline(ctx, cfg, newLogger(cfg))
	if err != nil {
		return nil, err
	}

	local, err := p.Retrieve(ctx, target, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(local.Path()) }()

	f, err := os.Open(local.Path())
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = f.Close() }()

	return manifest.ScanIndex(target.URI(), f)
}

func runManifestCheck(cmd *cobra.Command, args []string) error {
	tree, err := manifest.LoadFile(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	workers := cfg.Concurrency.Workers
	if checkWorkers > 0 {
		workers = checkWorkers
	}

	results := validate.NewValidator(cfg.HTTP, workers).Check(cmd.Context(), tree)

	if checkJSON {
		if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	} else {
		writeCheckReport(cmd.OutOrStdout(), results)
	}

	failed := 0
	for _, r := range results {
		if !r.Accessible && !r.Skipped {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d entries failed the check", failed, len(results))
	}
	return nil
}

func writeCheckReport(w io.Writer, results []validate.CheckResult) {
	for _, r := range results {
		switch {
		case r.Skipped:
			fmt.Fprintf(w, "- %s (skipped: %s)\n", r.Key, r.Error)
		case r.Accessible && r.Stale:
			fmt.Fprintf(w, "✓ %s (stale, last modified %s)\n", r.Key, r.LastModified.Format(time.DateOnly))
		case r.Accessible:
			fmt.Fprintf(w, "✓ %s\n", r.Key)
		case r.Dead:
			fmt.Fprintf(w, "✗ %s (dead: %s)\n", r.Key, describeFailure(r))
		default:
			fmt.Fprintf(w, "✗ %s (%s)\n", r.Key, describeFailure(r))
		}
	}
}

func describeFailure(r validate.CheckResult) string {
	if r.Error != "" {
		return r.Error
	}
	return fmt.Sprintf("status %d", r.StatusCode)
}
