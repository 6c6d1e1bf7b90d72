package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/latticeforge/veridian/internal/engine"
	"github.com/latticeforge/veridian/internal/llm"
	"github.com/latticeforge/veridian/internal/pipeline"
	"github.com/latticeforge/veridian/internal/source/fsSource"
)

var (
	pipelineID    string
	ingestRoot    string
	collectionID  string
	entityList    string
	pipelineBatch int
)

var pipelineStartCmd = &cobra.Command{
	Use:   "pipeline-start",
	Short: "Start a semantic extraction pipeline over a filesystem source",
	RunE:  runPipelineStart,
}

var pipelineStopCmd = &cobra.Command{
	Use:   "pipeline-stop",
	Short: "Stop a running pipeline",
	RunE:  runPipelineStop,
}

var pipelineRestartCmd = &cobra.Command{
	Use:   "pipeline-restart",
	Short: "Restart a pipeline with its original settings",
	RunE:  runPipelineRestart,
}

var pipelineObserveCmd = &cobra.Command{
	Use:   "pipeline-observe",
	Short: "Print a pipeline's current statistics",
	RunE:  runPipelineObserve,
}

var pipelineListCmd = &cobra.Command{
	Use:   "pipeline-list",
	Short: "List every currently-registered pipeline id",
	RunE:  runPipelineList,
}

func init() {
	for _, cmd := range []*cobra.Command{
		pipelineStartCmd, pipelineStopCmd, pipelineRestartCmd, pipelineObserveCmd,
	} {
		cmd.Flags().StringVar(&pipelineID, "id", "", "pipeline id (required)")
		cmd.MarkFlagRequired("id")
	}

	pipelineStartCmd.Flags().StringVar(&ingestRoot, "root", "", "directory walked for files to ingest (required)")
	pipelineStartCmd.Flags().StringVar(&collectionID, "collection", "default", "storage collection id")
	pipelineStartCmd.Flags().StringVar(&entityList, "entities", "", "comma-separated literal entity list (optional)")
	pipelineStartCmd.Flags().IntVar(&pipelineBatch, "batch-size", 32, "token batch size")
	pipelineStartCmd.MarkFlagRequired("root")
}

func runPipelineStart(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := newClient(ctx)
	if err != nil {
		return err
	}

	var entities []string
	if entityList != "" {
		entities = strings.Split(entityList, ",")
	}

	model := llm.NewFixtureModel(512, 128, nil)
	settings := pipeline.PipelineSettings{
		CollectionID: collectionID,
		Source:       fsSource.New(fsSource.Config{RootDir: ingestRoot}),
		Model:        model,
		Extractor:    engine.NewEngine(model, entities, engine.Config{}),
		Storage:      c.store,
		EntityList:   entities,
		BatchSize:    pipelineBatch,
	}

	id, err := c.facade.StartPipeline(ctx, pipelineID, settings)
	if err != nil {
		return fmt.Errorf("starting pipeline: %w", err)
	}
	fmt.Printf("started pipeline %s\n", id)
	return nil
}

func runPipelineStop(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := newClient(ctx)
	if err != nil {
		return err
	}
	if err := c.facade.StopPipeline(ctx, pipelineID); err != nil {
		return fmt.Errorf("stopping pipeline %s: %w", pipelineID, err)
	}
	fmt.Printf("stopped pipeline %s\n", pipelineID)
	return nil
}

func runPipelineRestart(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := newClient(ctx)
	if err != nil {
		return err
	}
	id, err := c.facade.RestartPipeline(ctx, pipelineID)
	if err != nil {
		return fmt.Errorf("restarting pipeline %s: %w", pipelineID, err)
	}
	fmt.Printf("restarted pipeline %s\n", id)
	return nil
}

func runPipelineObserve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := newClient(ctx)
	if err != nil {
		return err
	}
	stats, err := c.facade.ObservePipeline(ctx, pipelineID)
	if err != nil {
		return fmt.Errorf("observing pipeline %s: %w", pipelineID, err)
	}

	fmt.Printf("pipeline %s:\n", pipelineID)
	fmt.Printf("  docs:              %d\n", stats.TotalDocs)
	fmt.Printf("  batches:           %d\n", stats.TotalBatches)
	fmt.Printf("  sentences:         %d\n", stats.TotalSentences)
	fmt.Printf("  graph events:      %d\n", stats.TotalGraphEvents)
	fmt.Printf("  vector events:     %d\n", stats.TotalVectorEvents)
	fmt.Printf("  events processed:  %d\n", stats.TotalEventsProcessed)
	return nil
}

func runPipelineList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := newClient(ctx)
	if err != nil {
		return err
	}
	for _, id := range c.facade.ListPipelines() {
		fmt.Println(id)
	}
	return nil
}
