package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sito/internal/resource"
)

var classifyJSON bool

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify <uri>...",
	Short: "Show how URIs are rooted and where they live",
	Long: `Classify reports the structural kind (naive, relative, absolute,
fully_qualified) and location kind (local, network, no_proto_file, ...)
of each URI, whether it can be turned into a local path, and that path.

Example:
  sito classify /etc/hosts docs/readme.md https://example.com/a.txt
  sito classify file:///srv/data s3://bucket/key --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := classifyURIs(args)
		if classifyJSON {
			return writeJSON(cmd.OutOrStdout(), rows)
		}
		return writeClassifyTable(cmd.OutOrStdout(), rows)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "output JSON")
}

// classification is one classify result row
type classification struct {
	URI        string                  `json:"uri"`
	Structural resource.StructuralKind `json:"structural"`
	Location   resource.LocationKind   `json:"location"`
	Localized  bool                    `json:"localized"`
	LocalPath  string                  `json:"local_path,omitempty"`
	Scheme     string                  `json:"scheme,omitempty"`
	Authority  string                  `json:"authority,omitempty"`
}

func classifyURIs(uris []string) []classification {
	rows := make([]classification, 0, len(uris))
	for _, uri := range uris {
		r := resource.New(uri)
		row := classification{
			URI:        uri,
			Structural: r.StructuralKind(),
			Location:   r.LocationKind(),
			Localized:  r.IsLocalized(),
			Scheme:     r.Parts().Scheme,
			Authority:  r.Parts().Authority,
		}
		if path, err := r.LocalPath(); err == nil {
			row.LocalPath = path
		}
		rows = append(rows, row)
	}
	return rows
}

func writeClassifyTable(w io.Writer, rows []classification) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "URI\tSTRUCTURE\tLOCATION\tLOCALIZED\tPATH")
	for _, row := range rows {
		path := row.LocalPath
		if !row.Localized {
			path = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", row.URI, row.Structural, row.Location, row.Localized, path)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
