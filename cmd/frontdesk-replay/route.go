package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/frontdesk/internal/anthropic"
	"github.com/MikeSquared-Agency/frontdesk/internal/catalog"
	"github.com/MikeSquared-Agency/frontdesk/internal/classifier"
	"github.com/MikeSquared-Agency/frontdesk/internal/engine"
	"github.com/MikeSquared-Agency/frontdesk/internal/router"
	"github.com/MikeSquared-Agency/frontdesk/internal/session"
	"github.com/MikeSquared-Agency/frontdesk/internal/triage"
)

type routeOptions struct {
	rules       string
	company     string
	callerPhone string
	useLLM      bool
	model       string
}

var routeOpts routeOptions

var routeCmd = &cobra.Command{
	Use:   "route [utterance...]",
	Short: "Run one simulated call and print each turn as JSON",
	Long: `Runs the utterances, in order, as the turns of a single call. With no
arguments, utterances are read from stdin, one per line.`,
	RunE: runRoute,
}

func init() {
	f := routeCmd.Flags()
	f.StringVar(&routeOpts.rules, "rules", "", "rules YAML file (required)")
	f.StringVar(&routeOpts.company, "company", "", "company ID (required)")
	f.StringVar(&routeOpts.callerPhone, "caller", "", "caller ID phone number")
	f.BoolVar(&routeOpts.useLLM, "llm", false, "use the Anthropic classifier (needs ANTHROPIC_API_KEY)")
	f.StringVar(&routeOpts.model, "model", "claude-haiku-4-5", "classifier model")
	_ = routeCmd.MarkFlagRequired("rules")
	_ = routeCmd.MarkFlagRequired("company")
}

// turnOutput is one line of route output.
type turnOutput struct {
	Utterance string        `json:"utterance"`
	Result    engine.Result `json:"result"`
}

func runRoute(cmd *cobra.Command, args []string) error {
	utterances := args
	if len(utterances) == 0 {
		var err error
		utterances, err = readLines(cmd.InOrStdin())
		if err != nil {
			return err
		}
	}
	if len(utterances) == 0 {
		return fmt.Errorf("no utterances given")
	}

	files, err := catalog.NewFileSource(routeOpts.rules, slog.Default())
	if err != nil {
		return err
	}
	cache := catalog.NewCache(files, time.Hour, slog.Default())

	var cls router.Classifier
	if routeOpts.useLLM {
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return fmt.Errorf("--llm needs ANTHROPIC_API_KEY")
		}
		cls = classifier.New(anthropic.NewClient(key, routeOpts.model, 0), slog.Default())
	}

	rt := router.New(cls, router.DefaultOptions(), slog.Default())
	eng := engine.New(cache, rt, triage.NewDispatcher("", slog.Default()), nil, slog.Default())
	sessions := session.NewManager(eng, cache, nil, nil, slog.Default())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	start, err := sessions.Start(ctx, session.StartRequest{CompanyID: routeOpts.company, CallerPhone: routeOpts.callerPhone})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, u := range utterances {
		res, err := sessions.Turn(ctx, start.CallID, u)
		if err != nil {
			return fmt.Errorf("turn %q: %w", u, err)
		}
		if err := enc.Encode(turnOutput{Utterance: u, Result: res}); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}

	final, err := sessions.End(ctx, start.CallID)
	if err != nil {
		return err
	}
	return enc.Encode(map[string]any{"call": final})
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read utterances: %w", err)
	}
	return lines, nil
}
