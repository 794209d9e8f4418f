package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"explorer/internal/app"
	"explorer/internal/models"
	"explorer/internal/pipeline"
	"explorer/internal/types"

	"github.com/spf13/cobra"
)

// runAppOptions is appended to the builder options of every run invocation.
var runAppOptions []app.AppBuilderOption

var runCmd = &cobra.Command{
	Use:   "run [content...]",
	Short: "Explore one or more inputs from the command line",
	Long: `run processes each argument as its own submission. By default every model
answers every submission; with --single each submission goes to the next model
in round-robin order.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cleanup, err := setupLogging(cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer cleanup()

		kind, _ := cmd.Flags().GetString("type")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		hasImage, _ := cmd.Flags().GetBool("has-image")
		single, _ := cmd.Flags().GetBool("single")
		asJSON, _ := cmd.Flags().GetBool("json")

		persist, _ := cmd.Flags().GetBool("persist")

		opts := []app.AppBuilderOption{app.WithoutHTTP()}
		if !persist {
			opts = append(opts, app.WithoutStores())
		}
		opts = append(opts, runAppOptions...)
		a, err := app.NewApp(cfg, opts...)
		if err != nil {
			return err
		}
		defer a.Close()

		var rotation *models.Rotation
		if single {
			rotation = models.NewRotation(a.Catalog())
		}
		out := cmd.OutOrStdout()
		for _, content := range args {
			input := buildInput(kind, content, tags, hasImage)
			driver := a.Driver()
			if rotation != nil {
				m, ok := rotation.Next()
				if !ok {
					return fmt.Errorf("model catalog is empty")
				}
				one, err := models.NewCatalog([]types.ModelDescriptor{m})
				if err != nil {
					return err
				}
				driver = driver.WithCatalog(one)
			}
			res, err := driver.Process(cmd.Context(), input, nil)
			if err != nil {
				return err
			}
			if persist {
				if err := a.Persist(cmd.Context(), res); err != nil {
					return err
				}
			}
			if err := writeResult(out, res, asJSON); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("type", string(types.KindText), "input kind: text, link or image")
	runCmd.Flags().StringSlice("tag", nil, "category tag (repeatable)")
	runCmd.Flags().Bool("has-image", false, "mark an image submission as carrying an image")
	runCmd.Flags().Bool("single", false, "send each input to one model, round-robin")
	runCmd.Flags().Bool("json", false, "print the full result as JSON")
	runCmd.Flags().Bool("persist", false, "save runs to the history and call-log stores")
	rootCmd.AddCommand(runCmd)
}

func buildInput(kind, content string, tags []string, hasImage bool) types.InputRecord {
	return types.InputRecord{
		Kind:     types.InputKind(strings.ToLower(strings.TrimSpace(kind))),
		Content:  content,
		Tags:     tags,
		HasImage: hasImage,
	}
}

func writeResult(w io.Writer, res types.AggregateResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	var b strings.Builder
	b.WriteString(res.CombinedText)
	b.WriteString("\n\n")
	for _, o := range res.Outcomes {
		status := "ok"
		if o.Failed {
			status = "failed"
		}
		fmt.Fprintf(&b, "- %s: %s, %d tokens, %dms\n", o.DisplayName, status, o.TokenCount, o.LatencyMs)
	}
	fmt.Fprintf(&b, "total %dms, run %s\n", res.TotalLatencyMs, res.ID)
	_, err := io.WriteString(w, b.String())
	return err
}

// exitStatus maps bad input to 2 and everything else to 1.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	if pipeline.StatusOf(err) < 500 {
		return 2
	}
	return 1
}
