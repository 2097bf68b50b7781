package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docverify/docverify-backend/internal/verification/authenticity"
	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/internal/verification/ocr"
	"github.com/docverify/docverify-backend/internal/verification/pipeline"
	"github.com/docverify/docverify-backend/internal/verification/processor"
	"github.com/docverify/docverify-backend/internal/verification/report"
	"github.com/docverify/docverify-backend/internal/verification/rules"
	"github.com/docverify/docverify-backend/pkg/config"
)

func newVerifyCmd(verbose *bool) *cobra.Command {
	var (
		docType   string
		asReport  bool
		pdfPath   string
		local     bool
		skipFaces bool
	)

	cmd := &cobra.Command{
		Use:   "verify <image>",
		Short: "Run the verification pipeline over an image",
		Long: `Run authenticity, extraction, validation and face detection over one image.

Collaborators are configured the same way as the service (DOCVERIFY_* environment
variables or ./config/docverify.yaml). Without a Gemini key the fields are read
with local OCR when it is enabled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domain.ParseDocumentType(docType)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			cfg, err := config.Load("docverify")
			if err != nil {
				return err
			}

			log := cliLogger(cmd, *verbose)
			opts := []pipeline.Option{pipeline.WithLogger(log)}
			if cfg.Gemini.Enabled() {
				gemini := processor.NewGeminiClient(cfg.Gemini)
				opts = append(opts, pipeline.WithExtractor(gemini), pipeline.WithReviewer(gemini))
				if cfg.Gemini.RemoteAuthenticity {
					opts = append(opts, pipeline.WithRemoteAuthenticity(gemini))
				}
			}
			if cfg.OCR.Enabled {
				opts = append(opts, pipeline.WithTextRecognizer(ocr.NewRecognizer(cfg.OCR)))
			}
			if cfg.Face.URL != "" {
				opts = append(opts, pipeline.WithFaceAnalyzer(processor.NewFaceClient(cfg.Face)))
			}

			orch := pipeline.New(authenticity.NewScorer(log), rules.NewEngine(), opts...)
			result := orch.Run(cmd.Context(), domain.Image{Name: filepath.Base(args[0]), Data: data}, t, domain.Options{
				UseRemoteExtraction: !local && cfg.Gemini.Enabled(),
				DetectFace:          !skipFaces,
			})

			if pdfPath != "" {
				pdf, err := report.PDF(result, report.DefaultPDFOptions())
				if err != nil {
					return err
				}
				if err := os.WriteFile(pdfPath, pdf, 0o644); err != nil {
					return fmt.Errorf("failed to write pdf: %w", err)
				}
			}

			if asReport {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), report.Text(result))
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&docType, "type", "t", "", "Document type (see 'docverify types')")
	cmd.Flags().BoolVar(&asReport, "report", false, "Print the text report instead of JSON")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Also write the report as a PDF to this path")
	cmd.Flags().BoolVar(&local, "local", false, "Skip remote extraction even when Gemini is configured")
	cmd.Flags().BoolVar(&skipFaces, "no-face", false, "Skip face detection")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newScoreCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "score <image>",
		Short: "Score an image for signs of AI generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}
			verdict := authenticity.NewScorer(cliLogger(cmd, *verbose)).Score(data)
			return printJSON(cmd.OutOrStdout(), verdict)
		},
	}
}
