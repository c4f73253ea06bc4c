package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sito/internal/pipeline"
	"github.com/ppiankov/sito/internal/resource"
)

var (
	retrieveDest    string
	retrieveJSON    bool
	retrieveTimeout time.Duration
)

// retrieveCmd represents the retrieve command
var retrieveCmd = &cobra.Command{
	Use:   "retrieve <uri>",
	Short: "Retrieve one resource to the local filesystem",
	Long: `Retrieve fetches a resource and prints where it landed.

Without --dest, remote resources go to a temporary file and local files are
used in place.

Example:
  sito retrieve https://example.com/data.csv --dest ./data.csv
  sito retrieve s3://bucket/reports/q1.pdf --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	rootCmd.AddCommand(retrieveCmd)

	retrieveCmd.Flags().StringVar(&retrieveDest, "dest", "", "destination file")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output JSON")
	retrieveCmd.Flags().DurationVar(&retrieveTimeout, "timeout", 10*time.Minute, "overall timeout")
}

// retrieved is the JSON form of a retrieval
type retrieved struct {
	URI        string            `json:"uri"`
	Path       string            `json:"path"`
	Mimetype   string            `json:"mimetype,omitempty"`
	Attributes map[string]string `json:"attributes"`
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), retrieveTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	p, err := pipeline.NewPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var opts []resource.RetrieveOption
	if cfg.Output.Verbose {
		opts = append(opts, resource.WithProgress(func(bytesSoFar, _, totalSize int64) {
			if totalSize > 0 {
				fmt.Fprintf(os.Stderr, "\r%d/%d bytes", bytesSoFar, totalSize)
			} else {
				fmt.Fprintf(os.Stderr, "\r%d bytes", bytesSoFar)
			}
		}))
	}

	local, err := p.Retrieve(ctx, resource.New(args[0]), retrieveDest, opts...)
	if cfg.Output.Verbose {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	if retrieveJSON {
		return writeJSON(cmd.OutOrStdout(), retrieved{
			URI:        local.URI(),
			Path:       local.Path(),
			Mimetype:   local.Mimetype(),
			Attributes: local.Attributes(),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), local.Path())
	return nil
}
