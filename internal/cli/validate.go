package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackbom/pkg/cdx"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/validate"
)

// validateReport is the --json output for one document.
type validateReport struct {
	File        string `json:"file"`
	SpecVersion string `json:"specVersion,omitempty"`
	OK          bool   `json:"ok"`
	validate.Result
	Error string `json:"error,omitempty"`
}

// validateCommand creates the validate command.
func (c *CLI) validateCommand() *cobra.Command {
	var (
		strict bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check CycloneDX documents",
		Long: `Check CycloneDX documents in JSON or binary form.

Reported errors are bom-refs with unescaped separators. Warnings cover
dangling references, dependencies across ecosystems, a root without
dependencies and components without evidence. Only errors fail the command
unless --strict is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate(cmd.Context(), args, strict, asJSON, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail on warnings too")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print findings as JSON")

	return cmd
}

// runValidate checks every file and reports findings. Reading continues
// after a file fails.
func (c *CLI) runValidate(ctx context.Context, files []string, strict, asJSON bool, w io.Writer) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	logger := loggerFromContext(ctx)
	v := validate.New(cfg.ValidateOptions())

	var (
		reports []validateReport
		failed  int
	)
	for _, f := range files {
		r := validateFile(v, f)
		logger.Debug("validated", "file", f, "errors", len(r.Errors), "warnings", len(r.Warnings))
		if r.Error != "" || !r.OK || (strict && len(r.Warnings) > 0) {
			failed++
		}
		reports = append(reports, r)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return errs.Wrap(errs.ErrCodeWriteFailed, err, "write report")
		}
	} else {
		for _, r := range reports {
			printValidateReport(r)
		}
	}

	if failed > 0 {
		return errs.New(errs.ErrCodeInvalidDocument, "%d of %d document(s) failed validation", failed, len(files))
	}
	return nil
}

func validateFile(v *validate.Validator, path string) validateReport {
	r := validateReport{File: path}
	d, err := cdx.ReadFile(path)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.SpecVersion = d.SpecVersion
	g, err := cdx.FromDocument(d)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Result = v.Validate(g)
	r.OK = r.Result.OK()
	return r
}

func printValidateReport(r validateReport) {
	switch {
	case r.Error != "":
		printError("%s: %s", r.File, r.Error)
		return
	case !r.OK:
		printError("%s: %d error(s), %d warning(s)", r.File, len(r.Errors), len(r.Warnings))
	case len(r.Warnings) > 0:
		printWarning("%s: valid, %d warning(s)", r.File, len(r.Warnings))
	default:
		printSuccess("%s: valid CycloneDX %s", r.File, r.SpecVersion)
	}
	for _, e := range r.Errors {
		printDetail("%s %s", StyleError.Render("error:"), e)
	}
	for _, w := range r.Warnings {
		printDetail("%s %s", StyleWarning.Render("warning:"), w)
	}
}
