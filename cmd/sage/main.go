package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nkoretz/sage/internal/evaluation"
	"github.com/nkoretz/sage/internal/knowledge"
)

func main() {
	// Load .env if present; real environment variables win.
	_ = godotenv.Load()

	ctx := context.Background()

	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "index":
			if err := runIndexCommand(ctx, args[1:]); err != nil {
				log.Fatalf("index command failed: %v", err)
			}
			return
		case "collections":
			if err := runCollectionsCommand(ctx, args[1:]); err != nil {
				log.Fatalf("collections command failed: %v", err)
			}
			return
		case "eval":
			if err := runEvalCommand(ctx, args[1:]); err != nil {
				log.Fatalf("eval command failed: %v", err)
			}
			return
		}
	}

	if err := runAskCommand(ctx, args); err != nil {
		log.Fatalf("command failed: %v", err)
	}
}

// runAskCommand answers a single query, or drops into the interactive loop
// when no query is given.
func runAskCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sage", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Print a detailed execution trace")
	saveTrace := fs.Bool("save-trace", false, "Persist the full reasoning trace to the log directory")
	maxIter := fs.Int("max-iter", 0, "Override the maximum reasoning iterations for this run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := prepareRuntimeEnv(ctx, *verbose, *maxIter)
	if err != nil {
		return err
	}
	defer env.Close()

	if env.Config.AutoIndex {
		if _, err := env.Indexer.Build(ctx, false); err != nil {
			return fmt.Errorf("auto-index failed: %w", err)
		}
	}

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		return runInteractive(ctx, env, *saveTrace)
	}
	return answerOnce(ctx, env, query, *saveTrace)
}

func answerOnce(ctx context.Context, env *runtimeEnv, query string, saveTrace bool) error {
	state, err := env.Orchestrator.Run(ctx, query)
	if err != nil {
		return err
	}

	fmt.Println(state.CurrentAnswer)
	fmt.Printf("\n(confidence %.2f, %d iteration(s), %d steps)\n",
		state.Confidence, state.IterationsUsed(), len(state.Steps))

	if saveTrace {
		path, err := env.Orchestrator.SaveTrace(state)
		if err != nil {
			return fmt.Errorf("failed to save trace: %w", err)
		}
		fmt.Printf("trace saved to %s\n", path)
	}
	return nil
}

func runInteractive(ctx context.Context, env *runtimeEnv, saveTrace bool) error {
	fmt.Println("Interactive mode. Type a question, or 'exit' to quit.")

	s := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !s.Scan() {
			break
		}
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		if err := answerOnce(ctx, env, line, saveTrace); err != nil {
			log.Printf("error: %v", err)
		}
		fmt.Println()
	}
	return s.Err()
}

func runIndexCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	full := fs.Bool("full", false, "Reindex every document regardless of change detection")
	watch := fs.Bool("watch", false, "Keep running and reindex on file changes")
	verbose := fs.Bool("verbose", false, "Debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := prepareRuntimeEnv(ctx, *verbose, 0)
	if err != nil {
		return err
	}
	defer env.Close()

	stats, err := env.Indexer.Build(ctx, *full)
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d, unchanged %d, removed %d (%d chunks written)\n",
		stats.Indexed, stats.Unchanged, stats.Removed, stats.Chunks)

	if !*watch {
		return nil
	}

	// Block until interrupted; the cancel lets the deferred watcher and
	// store shutdowns run instead of dying mid-signal.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := knowledge.NewWatcher(env.Config.DataDir, env.Indexer, env.Log)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Println("watching for changes, Ctrl-C to stop")
	<-ctx.Done()
	return nil
}

func runCollectionsCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("collections", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := prepareRuntimeEnv(ctx, *verbose, 0)
	if err != nil {
		return err
	}
	defer env.Close()

	names, err := env.Store.ListCollections(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("the knowledge base is empty; run 'sage index' first")
		return nil
	}
	for _, name := range names {
		stats, err := env.Store.Stats(ctx, name)
		if err != nil {
			return err
		}
		fmt.Printf("%-20s %5d documents %6d chunks\n", stats.Name, stats.Documents, stats.Chunks)
	}
	return nil
}

func runEvalCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	dataset := fs.String("dataset", "", "Path to the test-query dataset (defaults to EVAL_DATASET)")
	output := fs.String("output", "", "Write the full report to this path")
	verbose := fs.Bool("verbose", false, "Debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := prepareRuntimeEnv(ctx, *verbose, 0)
	if err != nil {
		return err
	}
	defer env.Close()

	path := *dataset
	if path == "" {
		path = env.Config.EvalDataset
	}
	queries, err := evaluation.LoadDataset(path)
	if err != nil {
		return err
	}

	// The judge may use a stronger model than the agent itself.
	judgeClient := env.Client
	if env.Config.EvalModel != env.Config.AgentModel {
		judgeClient, err = newJudgeClient(env)
		if err != nil {
			return err
		}
	}

	evaluator := evaluation.NewEvaluator(judgeClient, env.Log)
	runner := evaluation.NewRunner(env.Orchestrator, evaluator, env.Log)
	report := runner.Run(ctx, queries)

	s := report.Summary
	fmt.Printf("evaluated %d queries (%d failed)\n", s.TotalQueries, s.Failed)
	fmt.Printf("answer quality: relevance %.3f, accuracy %.3f, completeness %.3f, coherence %.3f, overall %.3f\n",
		s.AnswerQuality.Relevance, s.AnswerQuality.Accuracy, s.AnswerQuality.Completeness,
		s.AnswerQuality.Coherence, s.AnswerQuality.Overall)
	fmt.Printf("reasoning: %.2f avg iterations, %.3f avg confidence\n", s.AvgIterations, s.AvgConfidence)
	fmt.Printf("topic coverage: %.3f\n", s.AvgCoverage)

	if *output != "" {
		if err := evaluation.WriteReport(*output, report); err != nil {
			return err
		}
		fmt.Printf("report written to %s\n", *output)
	}
	return nil
}
