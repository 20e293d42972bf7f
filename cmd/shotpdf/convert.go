package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/shotpdf/core"
	"pkt.systems/shotpdf/internal/appconfig"
	"pkt.systems/shotpdf/internal/persist"
	"pkt.systems/shotpdf/schema"
	"pkt.systems/pslog"
)

const sniffLen = 512

type convertOptions struct {
	cfgPath string
	output  string
	paper   string
	margin  float64
	force   bool
}

func newConvertCmd() *cobra.Command {
	var opts convertOptions
	cmd := &cobra.Command{
		Use:   "convert [flags] IMAGE...",
		Short: "Convert an image file into a paginated PDF",
		Long: "Convert runs the same pipeline as the paste page: every image is decoded in\n" +
			"order and the last one is exported. Use - to read an image from stdin and\n" +
			"-o - to write the PDF to stdout.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file, or - for stdout (default export.document_name)")
	cmd.Flags().StringVar(&opts.paper, "paper", "", "paper size (a3, a4, a5, letter, legal)")
	cmd.Flags().Float64Var(&opts.margin, "margin", -1, "horizontal image margin in millimetres")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "write PDF data to stdout even when it is a terminal")
	return cmd
}

func runConvert(cmd *cobra.Command, opts convertOptions, args []string) error {
	logger := pslog.Ctx(cmd.Context())
	cfg, err := appconfig.Load(opts.cfgPath)
	if err != nil {
		return err
	}
	if opts.paper != "" {
		cfg.Page.Paper = opts.paper
		cfg.Page.Width, cfg.Page.Height, cfg.Page.ImageWidth = 0, 0, 0
	}
	if opts.margin >= 0 {
		cfg.Page.Margin = opts.margin
	}
	cfg.Export.OutputDir = ""
	serviceCfg, err := cfg.ServiceConfig()
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = serviceCfg.DocumentName
	}
	stdout := cmd.OutOrStdout()
	if output == "-" && isTerminal(stdout) && !opts.force {
		return errors.New("refusing to write PDF data to a terminal; use -o FILE or --force")
	}

	items, closeAll, err := openInputs(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	defer closeAll()
	if images := core.SelectImages(items); len(images) > 1 {
		logger.Warn("convert multiple images", "count", len(images), "exported", images[len(images)-1].Name)
	}

	service, err := core.NewService(serviceCfg, core.ServiceDeps{Logger: logger})
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	open, err := service.OpenSession(ctx, schema.OpenSessionRequest{})
	if err != nil {
		return err
	}
	id := open.Session.ID
	defer func() {
		_, _ = service.CloseSession(ctx, schema.CloseSessionRequest{SessionID: id})
	}()

	ingest, err := service.Ingest(ctx, schema.IngestRequest{SessionID: id, Items: items})
	if err != nil {
		if ingest.Decoded == 0 {
			return err
		}
		logger.Warn("convert partial", "decoded", ingest.Decoded, "failed", ingest.Failed, "err", err)
	}
	if ingest.Decoded == 0 {
		return fmt.Errorf("%w: no image inputs among %d argument(s)", schema.ErrInvalidRequest, len(args))
	}

	name := filepath.Base(output)
	if output == "-" {
		name = ""
	}
	doc, err := service.Export(ctx, schema.ExportRequest{SessionID: id, Name: name})
	if err != nil {
		return err
	}
	if output == "-" {
		w := bufio.NewWriter(stdout)
		if _, err := w.Write(doc.Data); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
		logger.Info("convert ok", "output", "stdout", "pages", doc.Pages, "bytes", len(doc.Data))
		return nil
	}
	store, err := persist.NewStoreWithLogger(filepath.Dir(output), logger)
	if err != nil {
		return err
	}
	path, err := store.Save(doc.Name, doc.Data)
	if err != nil {
		return err
	}
	logger.Info("convert ok", "output", path, "pages", doc.Pages, "bytes", len(doc.Data))
	return nil
}

// openInputs builds one lazily opened item per argument. Media types come
// from the extension and fall back to the leading bytes of the file.
func openInputs(stdin io.Reader, args []string) ([]schema.RawInput, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	items := make([]schema.RawInput, 0, len(args))
	for _, arg := range args {
		if arg == "-" {
			data, err := io.ReadAll(stdin)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("read stdin: %w", err)
			}
			items = append(items, schema.BytesInput(schema.DetectMediaType("", "", data), "stdin", data))
			continue
		}
		f, err := os.Open(arg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, f)
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(f, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			closeAll()
			return nil, nil, fmt.Errorf("read %s: %w", arg, err)
		}
		path := arg
		items = append(items, schema.RawInput{
			MediaType: schema.DetectMediaType("", path, head[:n]),
			Name:      path,
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
		})
	}
	return items, closeAll, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
