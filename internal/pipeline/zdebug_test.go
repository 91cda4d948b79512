package pipeline_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"docflow/internal/pipeline"
	"docflow/internal/store"
)

func TestZDebugRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	env := newPipelineEnv(t)
	ctx := context.Background()

	stuckPath := env.dropFile(t, "stuck.pdf")
	if _, err := env.store.InsertFileRecord(ctx, &store.FileRecord{
		FolderID:         env.folder.ID,
		OriginalPath:     stuckPath,
		OriginalFilename: "stuck.pdf",
		Status:           store.StatusProcessing,
	}); err != nil {
		t.Fatalf("insert stuck: %v", err)
	}

	queue := pipeline.NewQueue(env.store, env.processor, logger)
	queue.Start(ctx)
	defer queue.Stop()

	recovery := pipeline.NewRecovery(env.store, queue, logger)
	requeued, skipped, err := recovery.Run(ctx)
	t.Logf("requeued=%d skipped=%d err=%v", requeued, skipped, err)

	waitForIdle(t, queue)
	record, err := env.store.FindFileByName(ctx, env.folder.ID, "stuck.pdf")
	t.Logf("record=%+v err=%v", record, err)
}
