package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"ShelfLayoutServer/config"
	"ShelfLayoutServer/engine"
	"ShelfLayoutServer/gateway"

	"github.com/spf13/cobra"
)

// readDetections accepts a bare JSON array or an object with a
// "detections" field, the shape the detection service returns. "-" reads
// stdin.
func readDetections(path string, stdin io.Reader) ([]engine.RawDetection, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read detections: %w", err)
	}

	var raws []engine.RawDetection
	if err := json.Unmarshal(data, &raws); err == nil {
		return raws, nil
	}
	var wrapped struct {
		Detections []engine.RawDetection `json:"detections"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse detections: %w", err)
	}
	return wrapped.Detections, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func analyzeCommand(current func() *config.Config) *cobra.Command {
	var withContext bool
	cmd := &cobra.Command{
		Use:   "analyze <detections.json>",
		Short: "Analyze a detections file and print the shelf layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raws, err := readDetections(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			st, err := buildStack(current(), nil)
			if err != nil {
				return err
			}
			defer st.pool.Stop()

			res, err := st.svc.Analyze(cmd.Context(), raws)
			if err != nil {
				return err
			}
			if withContext {
				_, err = io.WriteString(cmd.OutOrStdout(), res.Context)
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res.Analysis)
		},
	}
	cmd.Flags().BoolVar(&withContext, "context", false, "print the yaml context document instead of the analysis")
	return cmd
}

func askCommand(current func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <detections.json> <question>",
		Short: "Analyze a detections file and answer a question about it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raws, err := readDetections(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			st, err := buildStack(current(), nil)
			if err != nil {
				return err
			}
			defer st.pool.Stop()

			res, err := st.svc.Ask(cmd.Context(), raws, args[1])
			var f *gateway.Failure
			if errors.As(err, &f) {
				fmt.Fprintln(cmd.OutOrStdout(), f.UserMessage())
				return err
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Answer.Text)
			return err
		},
	}
}
