package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/fingerprint"
)

var hashFormat string

var hashCmd = &cobra.Command{
	Use:   "hash [file]",
	Short: "Print the fingerprints of a file",
	Long: `Print the SHA-256 checksum of a file and, for images, its 64-bit
perceptual hash.

Examples:
  docintel hash receipt.jpg
  docintel hash invoice.pdf --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runHash,
}

func init() {
	rootCmd.AddCommand(hashCmd)

	hashCmd.Flags().StringVar(&hashFormat, "format", "text", "Output format: text or json")
}

type hashOutput struct {
	File           string `json:"file"`
	MimeType       string `json:"mime_type"`
	Checksum       string `json:"checksum"`
	PerceptualHash string `json:"perceptual_hash,omitempty"`
	LowQuality     bool   `json:"visual_quality_low,omitempty"`
}

func runHash(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	mimeType := domain.NormalizeMimeType(mimetype.Detect(data).String())

	fp, err := fingerprint.NewHasher().Hash(data, mimeType)
	if err != nil {
		return err
	}
	out := hashOutput{
		File:           args[0],
		MimeType:       mimeType,
		Checksum:       fp.Checksum,
		PerceptualHash: fp.PerceptualHash,
		LowQuality:     fp.VisualQualityLow,
	}

	w := cmd.OutOrStdout()
	if hashFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Fprintf(w, "mime:      %s\n", out.MimeType)
	fmt.Fprintf(w, "sha256:    %s\n", out.Checksum)
	switch {
	case out.PerceptualHash != "":
		fmt.Fprintf(w, "phash:     %s\n", out.PerceptualHash)
	case out.LowQuality:
		fmt.Fprintln(w, "phash:     unavailable (image too small or damaged)")
	}
	return nil
}
