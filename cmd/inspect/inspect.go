package inspect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/compliance"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/conf"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/defect"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/imaging"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/inference"
	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/server"
)

var standardCode string

// Command creates the inspect command for one-shot radiograph analysis.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [radiograph.png ...]",
		Short: "Analyze radiograph files from the command line",
		Long:  "Send one or more radiograph images to the inference sidecar and print detections with their compliance verdicts.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(settings, args)
		},
	}

	cmd.Flags().StringVar(&standardCode, "standard", viper.GetString("compliance.defaultstandard"), "Welding standard to check against")

	return cmd
}

func runInspect(settings *conf.Settings, files []string) error {
	standard, ok := compliance.ParseStandard(standardCode)
	if !ok {
		return fmt.Errorf("unknown welding standard: %s", standardCode)
	}
	classifier := compliance.NewClassifier(standard)

	client, err := inference.NewClient(server.InferenceConfig(settings))
	if err != nil {
		return fmt.Errorf("failed to create inference client: %w", err)
	}
	defer client.Close()

	ctx := context.Background()
	failed := 0
	for _, file := range files {
		if err := inspectFile(ctx, client, classifier, file); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", file, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func inspectFile(ctx context.Context, client *inference.Client, classifier *compliance.Classifier, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	info, err := imaging.Inspect(data)
	if err != nil {
		return err
	}

	result, err := client.Detect(ctx, data)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%dx%d %s, %.1f ms)\n",
		filepath.Base(file), info.Width, info.Height, info.Format, result.InferenceTimeMs)

	verdict := "PASS"
	defects := 0
	for _, d := range result.Detections {
		class := defect.ClassByID(d.ClassID)
		if defect.IsNoDefect(d.ClassID) {
			fmt.Printf("  %-10s conf=%.2f\n", class.Name, d.Confidence)
			continue
		}
		defects++

		severity := defect.SeverityFromConfidence(d.Confidence)
		check := classifier.Classify(class.Code, d.Confidence, &compliance.Region{
			X: d.X1, Y: d.Y1,
			Width:  d.X2 - d.X1,
			Height: d.Y2 - d.Y1,
			Area:   (d.X2 - d.X1) * (d.Y2 - d.Y1),
		}, 0)

		fmt.Printf("  %-10s %-3s conf=%.2f severity=%-8s box=[%.0f %.0f %.0f %.0f] %s\n",
			class.Name, class.Code, d.Confidence, severity, d.X1, d.Y1, d.X2, d.Y2, check.ComplianceStatus)

		switch check.ComplianceStatus {
		case compliance.StatusFail:
			verdict = "FAIL"
		case compliance.StatusReviewRequired:
			if verdict == "PASS" {
				verdict = "REVIEW_REQUIRED"
			}
		}
	}

	if defects == 0 {
		fmt.Printf("  no defects found\n")
	}
	fmt.Printf("  verdict: %s per %s\n", verdict, classifier.Standard())
	return nil
}
