// Command distill is a CLI for managing corpora (list, get, store, promote,
// delete, tag) and running evaluations against a local Ollama server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/distill-go/distill/core"
	"github.com/distill-go/distill/encoder"
	"github.com/distill-go/distill/evaluator"
	"github.com/distill-go/distill/registry"
	"github.com/distill-go/distill/report"
	"github.com/distill-go/distill/runner"
)

func main() {
	regDir := flag.String("registry", ".distill", "Registry directory (file backend)")
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	reg, err := registry.NewFileRegistry(*regDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "registry:", err)
		os.Exit(1)
	}
	ctx := context.Background()
	cmd := args[0]
	rest := args[1:]
	switch cmd {
	case "list":
		list(ctx, reg, rest)
	case "get":
		get(ctx, reg, rest)
	case "store":
		store(ctx, reg, rest)
	case "promote":
		promote(ctx, reg, rest)
	case "delete":
		deleteCmd(ctx, reg, rest)
	case "tag":
		tag(ctx, reg, rest)
	case "versions":
		versions(ctx, reg, rest)
	case "eval":
		eval(ctx, reg, rest)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: distill [ -registry <dir> ] <command> [args]

Commands:
  list                    List all corpora
  get <id> [version]      Get corpus (default: production version)
  store                   Store corpus from stdin (JSON)
  promote <id> <version> [stage]  Promote version (stage: dev|staging|production)
  delete <id> <version>  Delete a version
  tag <id> <version> <tag...>  Add tags
  versions <id>          List versions for an id
  eval [flags] <id> [version]  Evaluate a student model on a corpus (see eval -h)

Registry: file-based in -registry directory (default: .distill)
`)
}

func list(ctx context.Context, reg registry.Registry, args []string) {
	filter := registry.Filter{Limit: 500}
	corpora, err := reg.List(ctx, filter)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, c := range corpora {
		fmt.Printf("%s\t%s\t%s\t%d pairs\n", c.ID, c.Version, c.Name, c.Pairs())
	}
}

func get(ctx context.Context, reg registry.Registry, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "get requires <id> [version]")
		os.Exit(1)
	}
	id := args[0]
	version := ""
	if len(args) >= 2 {
		version = args[1]
	}
	var c *core.Corpus
	var err error
	if version == "" {
		c, err = reg.GetProduction(ctx, id)
	} else {
		c, err = reg.Get(ctx, id, version)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func store(ctx context.Context, reg registry.Registry, args []string) {
	var c core.Corpus
	if err := json.NewDecoder(os.Stdin).Decode(&c); err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	if c.ID == "" || c.Version == "" {
		fmt.Fprintln(os.Stderr, "corpus must have id and version")
		os.Exit(1)
	}
	if err := c.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := reg.Store(ctx, &c); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("stored %s@%s (%d pairs)\n", c.ID, c.Version, c.Pairs())
}

func promote(ctx context.Context, reg registry.Registry, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "promote requires <id> <version> [stage]")
		os.Exit(1)
	}
	id, version := args[0], args[1]
	stage := registry.StageProduction
	if len(args) >= 3 {
		switch strings.ToLower(args[2]) {
		case "dev":
			stage = registry.StageDev
		case "staging":
			stage = registry.StageStaging
		case "production":
			stage = registry.StageProduction
		default:
			fmt.Fprintln(os.Stderr, "stage must be dev|staging|production")
			os.Exit(1)
		}
	}
	if err := reg.Promote(ctx, id, version, stage); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("promoted %s@%s to %s\n", id, version, stage)
}

func deleteCmd(ctx context.Context, reg registry.Registry, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "delete requires <id> <version>")
		os.Exit(1)
	}
	if err := reg.Delete(ctx, args[0], args[1]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("deleted %s@%s\n", args[0], args[1])
}

func tag(ctx context.Context, reg registry.Registry, args []string) {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "tag requires <id> <version> <tag...>")
		os.Exit(1)
	}
	id, version := args[0], args[1]
	tags := args[2:]
	if err := reg.Tag(ctx, id, version, tags); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("tagged %s@%s with %v\n", id, version, tags)
}

func versions(ctx context.Context, reg registry.Registry, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "versions requires <id>")
		os.Exit(1)
	}
	infos, err := reg.ListVersions(ctx, args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, vi := range infos {
		fmt.Printf("%s\t%s\t%d pairs\t%v\n", vi.Version, vi.Stage, vi.Pairs, vi.Tags)
	}
}

func eval(ctx context.Context, reg registry.Registry, args []string) {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	teacherModel := fs.String("teacher", "nomic-embed-text", "Teacher embedding model")
	studentModel := fs.String("student", "", "Student embedding model (required)")
	base := fs.String("ollama", "", "Ollama base URL (default http://localhost:11434)")
	out := fs.String("out", "", "Directory for CSV results (empty disables CSV)")
	epoch := fs.Int("epoch", -1, "Training epoch for the CSV row")
	steps := fs.Int("steps", -1, "Training steps for the CSV row")
	retries := fs.Int("retries", 0, "Retries on evaluation failure")
	fs.Parse(args)
	if *studentModel == "" {
		fmt.Fprintln(os.Stderr, "eval requires -student <model>")
		os.Exit(1)
	}
	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "eval requires <id> [version]")
		os.Exit(1)
	}
	var c *core.Corpus
	var err error
	if len(rest) >= 2 {
		c, err = reg.Get(ctx, rest[0], rest[1])
	} else {
		c, err = reg.GetProduction(ctx, rest[0])
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	enc := encoder.NewOllama(encoder.OllamaConfig{BaseURL: *base})
	teacher := evaluator.NewModel(*teacherModel, enc)
	student := evaluator.NewModel(*studentModel, enc)
	progress := func(done, total int) {
		fmt.Fprintf(os.Stderr, "\rembedding %d/%d", done, total)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	}
	mse, err := evaluator.NewMSE(ctx, teacher, c,
		evaluator.WithName(c.ID),
		evaluator.WithProgress(progress),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	r := runner.New(mse, runner.WithRetry(*retries, runner.ExponentialBackoff(0, 0)))
	res, err := r.Run(ctx, student, evaluator.Run{Epoch: *epoch, Steps: *steps, OutputPath: *out})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	text, err := report.NewEngine().Render(ctx, "", report.Summary{
		Model:   student.Name,
		Epoch:   *epoch,
		Steps:   *steps,
		Metrics: res.Metrics,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Print(text)
}
