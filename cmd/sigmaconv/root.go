package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PhucNguyen204/query_translator/internal/config"
	"github.com/PhucNguyen204/query_translator/internal/rules"
	"github.com/PhucNguyen204/query_translator/pkg/translator"
)

type options struct {
	from       string
	to         string
	dir        string
	strict     bool
	jsonOut    bool
	verbose    bool
	mappings   string
	concurrent int
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "sigmaconv [file]",
		Short: "Translate detection rules between SIEM query languages",
		Long: "Translates one rule (from a file or stdin) or every rule under --dir " +
			"from the --from language into the --to language.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := o.translator()
			if err != nil {
				return err
			}
			if o.dir != "" {
				return runBatch(cmd.Context(), cmd.OutOrStdout(), tr, o)
			}
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			b, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			res, err := tr.Translate(cmd.Context(), translator.Request{Query: string(b), Source: o.from, Target: o.to})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res, o.jsonOut)
		},
	}
	cmd.Flags().StringVar(&o.from, "from", "sigma", "Source language")
	cmd.Flags().StringVar(&o.to, "to", "", "Target language")
	cmd.Flags().StringVar(&o.dir, "dir", "", "Translate every rule file under this directory")
	cmd.Flags().BoolVar(&o.strict, "strict", false, "Fail on fields missing from the target mapping")
	cmd.PersistentFlags().BoolVar(&o.jsonOut, "json", false, "Print results as JSON")
	cmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "Log debug output to stderr")
	cmd.PersistentFlags().StringVar(&o.mappings, "mappings", "", "Mapping directory (default: built-in mappings)")
	cmd.Flags().IntVar(&o.concurrent, "concurrency", 4, "Rules translated in parallel with --dir")
	_ = cmd.MarkFlagRequired("to")

	cmd.AddCommand(newPlatformsCmd(&o), newIOCsCmd(&o))
	return cmd
}

func (o options) translator() (*translator.Translator, error) {
	log := zap.NewNop().Sugar()
	if o.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		log = l.Sugar()
	}
	reg, err := translator.DefaultRegistry(config.Config{MappingsPath: o.mappings}.Mappings())
	if err != nil {
		return nil, err
	}
	cfg := translator.DefaultConfig().WithStrictMapping(o.strict).WithBatchConcurrency(o.concurrent)
	return translator.New(reg, cfg, log), nil
}

func runBatch(c context.Context, w io.Writer, tr *translator.Translator, o options) error {
	files, err := rules.LoadDirRecursive(o.dir, rules.DefaultExtensions[o.from]...)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	reqs := make([]translator.Request, 0, len(files))
	for _, f := range files {
		reqs = append(reqs, translator.Request{Query: f.Query, Source: o.from, Target: o.to})
	}
	outcomes, err := tr.TranslateBatch(c, reqs)
	if err != nil {
		return err
	}
	failed := 0
	for i, out := range outcomes {
		if out.Err != nil {
			failed++
			_, _ = fmt.Fprintf(w, "# %s: error: %v\n", files[i].Path, out.Err.Err)
			continue
		}
		_, _ = fmt.Fprintf(w, "# %s\n", files[i].Path)
		if err := printResult(w, out.Result, o.jsonOut); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintf(w, "# translated=%d failed=%d\n", len(files)-failed, failed)
	if failed > 0 {
		return errors.New("some rules failed to translate")
	}
	return nil
}

func printResult(w io.Writer, res *translator.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	for _, o := range res.Outputs {
		if len(res.Outputs) > 1 {
			_, _ = fmt.Fprintf(w, "# source mapping: %s\n", o.SourceMappingID)
		}
		_, _ = fmt.Fprintln(w, o.Query)
	}
	return nil
}

func newPlatformsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List source and target languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tr, err := o.translator()
			if err != nil {
				return err
			}
			reg := tr.Registry()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sources: %v\ntargets: %v\nindicator targets: %v\n", reg.Parsers(), reg.Renderers(), reg.CTIRenderers())
			return nil
		},
	}
}

func newIOCsCmd(o *options) *cobra.Command {
	var to string
	var perQuery int
	cmd := &cobra.Command{
		Use:   "iocs [file]",
		Short: "Build hunting queries from the indicators found in a report",
		Long: "Extracts IPs, domains, URLs, e-mails and file hashes from a text file " +
			"(or stdin) and renders them for an indicator target.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := o.translator()
			if err != nil {
				return err
			}
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			b, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			res, err := tr.TranslateIOCs(cmd.Context(), translator.IOCRequest{Text: string(b), Target: to, PerQuery: perQuery})
			if err != nil {
				return err
			}
			if o.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			for _, q := range res.Queries {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), q)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Indicator target")
	cmd.Flags().IntVar(&perQuery, "per-query", 25, "Indicators per query (0: all in one)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
