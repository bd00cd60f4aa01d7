package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackbom/pkg/cdx"
)

// convertCommand creates the convert command.
func (c *CLI) convertCommand() *cobra.Command {
	var (
		output      string
		to          string
		specVersion string
	)

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Re-encode a document as JSON or binary, or for another schema version",
		Long: `Re-encode a CycloneDX document.

The input may be JSON or binary; the encoding is detected. The output
encoding comes from --to, else from the extension of --output, else JSON.
With --spec-version the document is rewritten for that schema version,
keeping its serial number and timestamp. Converting to 1.5 drops provides
lists and keeps one evidence identity per component.`,
		Example: `  stackbom convert bom.json -o bom.cdx.pb
  stackbom convert bom.cdx.pb --to json --spec-version 1.5 > bom-1.5.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), args[0], output, to, specVersion)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&to, "to", "", "output encoding: json, binary")
	cmd.Flags().StringVar(&specVersion, "spec-version", "", "target spec version: 1.5, 1.6 (default: unchanged)")

	return cmd
}

func runConvert(ctx context.Context, input, output, to, specVersion string) error {
	logger := loggerFromContext(ctx)

	format, err := outputFormat(to, output, cdx.FormatJSON)
	if err != nil {
		return err
	}
	if specVersion != "" {
		if specVersion, err = cdx.CheckSpecVersion(specVersion); err != nil {
			return err
		}
	}

	d, err := cdx.ReadFile(input)
	if err != nil {
		return err
	}
	from := d.SpecVersion
	out, err := cdx.Convert(d, specVersion)
	if err != nil {
		return err
	}
	logger.Debug("converted document", "from", from, "to", out.SpecVersion, "format", format)

	if err := writeDocument(out, output, format); err != nil {
		return err
	}
	if output != "" && output != "-" {
		printSuccess("Converted %s (CycloneDX %s, %s)", input, out.SpecVersion, format)
		printFile(output)
	}
	return nil
}
