package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/latticeforge/veridian/internal/discovery"
)

var (
	discoverySessionID string
	discoveryMode      string
	discoveryQuery     string
	discoveryPipeline  string
	discoveryHasLLM    bool
)

var discoverStartCmd = &cobra.Command{
	Use:   "discover-start",
	Short: "Start a discovery session",
	RunE:  runDiscoverStart,
}

var discoverStopCmd = &cobra.Command{
	Use:   "discover-stop",
	Short: "Stop a discovery session",
	RunE:  runDiscoverStop,
}

var discoverQueryCmd = &cobra.Command{
	Use:   "discover-query",
	Short: "Run one page of a discovery session's retrieval loop",
	RunE:  runDiscoverQuery,
}

func init() {
	for _, cmd := range []*cobra.Command{discoverStartCmd, discoverStopCmd, discoverQueryCmd} {
		cmd.Flags().StringVar(&discoverySessionID, "session", "", "discovery session id (required)")
		cmd.MarkFlagRequired("session")
	}

	discoverStartCmd.Flags().StringVar(&discoveryMode, "mode", "search", "retrieval mode: search or traverser")
	discoverStartCmd.Flags().BoolVar(&discoveryHasLLM, "insight", false, "start an LLM-wrapped insight session instead of a plain one")

	discoverQueryCmd.Flags().StringVar(&discoveryQuery, "query", "", "free-text query")
	discoverQueryCmd.Flags().StringVar(&discoveryPipeline, "pipeline", "", "pipeline id to scope the query to")
}

func parseMode(s string) discovery.Mode {
	if s == "traverser" {
		return discovery.ModeTraverser
	}
	return discovery.ModeSearch
}

func runDiscoverStart(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := newClient(ctx)
	if err != nil {
		return err
	}
	mode := parseMode(discoveryMode)

	if discoveryHasLLM {
		c.facade.StartInsightSession(discoverySessionID, mode, true)
		fmt.Printf("started insight session %s (mode=%s)\n", discoverySessionID, discoveryMode)
		return nil
	}

	sess := c.facade.StartDiscoverySession(discoverySessionID, mode)
	fmt.Printf("started discovery session %s (mode=%s)\n", sess.ID(), discoveryMode)
	return nil
}

func runDiscoverStop(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := newClient(ctx)
	if err != nil {
		return err
	}
	if err := c.facade.StopDiscoverySession(discoverySessionID); err != nil {
		return fmt.Errorf("stopping discovery session %s: %w", discoverySessionID, err)
	}
	fmt.Printf("stopped discovery session %s\n", discoverySessionID)
	return nil
}

func runDiscoverQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := newClient(ctx)
	if err != nil {
		return err
	}

	req := discovery.QueryRequest{
		SessionID:  discoverySessionID,
		PipelineID: discoveryPipeline,
		Query:      discoveryQuery,
	}

	insights, err := c.facade.PageDiscovery(ctx, discoverySessionID, req)
	if err != nil {
		return fmt.Errorf("querying discovery session %s: %w", discoverySessionID, err)
	}

	for _, ins := range insights {
		fmt.Printf("[%.3f] %s -> %s: %s\n", ins.Score, ins.Subject, ins.Object, ins.Sentence)
	}
	return nil
}
