package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var analyzeReporter string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image path or URL>",
	Short: "Analyze a single image for traffic violations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		imageRef, err := resolveImageRef(args[0])
		if err != nil {
			return err
		}

		var reporter *string
		if analyzeReporter != "" {
			reporter = &analyzeReporter
		}

		result, err := env.Pipeline.Process(ctx, imageRef, reporter)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return eris.Wrap(err, "encode result")
		}
		fmt.Println(string(out))

		return nil
	},
}

// resolveImageRef turns a local file path into a base64 data URI and passes
// URLs through unchanged.
func resolveImageRef(arg string) (string, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return arg, nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return "", eris.Wrapf(err, "read image %s", arg)
	}

	mediaType := mediaTypeFor(arg, data)
	return fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data)), nil
}

// mediaTypeFor picks a media type from the file extension, falling back to
// content sniffing.
func mediaTypeFor(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return http.DetectContentType(data)
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeReporter, "reporter", "", "reporter identity to attach to the report")
	rootCmd.AddCommand(analyzeCmd)
}
