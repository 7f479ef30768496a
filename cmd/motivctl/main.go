// Command motivctl inspects model directories and runs one-off predictions
// without starting the server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mind-engage/mindengage-motivation/internal/bootstrap"
	"github.com/mind-engage/mindengage-motivation/internal/config"
	"github.com/mind-engage/mindengage-motivation/internal/db"
	"github.com/mind-engage/mindengage-motivation/internal/features"
	"github.com/mind-engage/mindengage-motivation/internal/inference"
	"github.com/mind-engage/mindengage-motivation/internal/model"
	"github.com/mind-engage/mindengage-motivation/internal/registry"
)

const usage = `usage: motivctl <command> [flags]

commands:
  validate   load every artifact and report its origin
  keys       list loaded model keys
  predict    score one session: -mode -difficulty -duration -data '{"score":1}'
  publish    validate artifact files and store them in the model_artifacts table
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 ok, 1 load or prediction failure,
// 2 usage error.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg := config.FromEnv()
	dirs := fs.String("models", strings.Join(cfg.ModelsDirs, ","), "comma-separated model directories")
	fs.StringVar(&cfg.ModelsSource, "source", cfg.ModelsSource, "fs|sql|both")
	fs.StringVar(&cfg.ModelSuffix, "suffix", cfg.ModelSuffix, "artifact filename suffix")
	fs.StringVar(&cfg.DuplicatePolicy, "policy", cfg.DuplicatePolicy, "strict|permissive")
	fs.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "sqlite|postgres")
	fs.StringVar(&cfg.DBDSN, "db-dsn", cfg.DBDSN, "database DSN")

	var (
		asJSON     *bool
		mode       *string
		difficulty *int
		duration   *float64
		data       *string
	)
	switch cmd {
	case "validate":
	case "keys":
		asJSON = fs.Bool("json", false, "print keys with their parsed context as JSON")
	case "predict":
		mode = fs.String("mode", "", "game mode")
		difficulty = fs.Int("difficulty", 0, "difficulty level")
		duration = fs.Float64("duration", 0, "session duration in minutes")
		data = fs.String("data", "{}", "player data as a JSON object of numbers")
	case "publish":
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", cmd, usage)
		return 2
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg.ModelsDirs = splitCSV(*dirs)
	if cmd == "publish" {
		return publish(ctx, stdout, stderr, cfg, fs.Args())
	}

	logger := bootstrap.NewLogger(cfg, stderr)
	reg, err := bootstrap.LoadRegistry(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "load: %v\n", err)
		return 1
	}

	switch cmd {
	case "validate":
		for _, k := range reg.Keys() {
			b, _ := reg.Get(k)
			fmt.Fprintf(stdout, "%s\t%d clusters\t%d features\t%s\n", k, len(b.ClusterIDs()), len(b.Features), reg.Origin(k))
		}
		fmt.Fprintf(stdout, "ok: %d models\n", reg.Len())
		return 0
	case "keys":
		return printKeys(stdout, reg, *asJSON)
	default:
		return predict(stdout, stderr, reg, cfg, *mode, *difficulty, *duration, *data)
	}
}

func printKeys(w io.Writer, reg *registry.Registry, asJSON bool) int {
	if !asJSON {
		for _, k := range reg.Keys() {
			fmt.Fprintln(w, k)
		}
		return 0
	}
	type entry struct {
		Key     string          `json:"key"`
		Context *model.KeyParts `json:"context,omitempty"`
	}
	out := make([]entry, 0, reg.Len())
	for _, k := range reg.Keys() {
		e := entry{Key: k}
		if p, ok := model.ParseKey(k); ok {
			e.Context = &p
		}
		out = append(out, e)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
	return 0
}

func predict(stdout, stderr io.Writer, reg *registry.Registry, cfg config.Config, mode string, difficulty int, duration float64, data string) int {
	if strings.TrimSpace(mode) == "" {
		fmt.Fprintln(stderr, "predict: -mode required")
		return 2
	}
	var playerData map[string]float64
	if err := json.Unmarshal([]byte(data), &playerData); err != nil {
		fmt.Fprintf(stderr, "predict: -data: %v\n", err)
		return 2
	}

	deriver, err := features.Parse(cfg.DerivedFeatures)
	if err != nil {
		fmt.Fprintf(stderr, "predict: %v\n", err)
		return 1
	}
	req, err := deriver.Apply(inference.Request{
		GameMode:        strings.TrimSpace(mode),
		Difficulty:      difficulty,
		DurationMinutes: duration,
		PlayerData:      playerData,
	})
	if err != nil {
		fmt.Fprintf(stderr, "predict: %v\n", err)
		return 1
	}

	res, err := inference.New(reg, inference.WithLogger(bootstrap.NewLogger(cfg, stderr))).Predict(req)
	if err != nil {
		fmt.Fprintf(stderr, "predict: %v\n", err)
		if errors.Is(err, model.ErrModelNotFound) {
			fmt.Fprintf(stderr, "available: %s\n", strings.Join(reg.Keys(), ", "))
		}
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(struct {
		ModelKey string           `json:"model_key"`
		Result   inference.Result `json:"result"`
	}{req.Key(), res})
	return 0
}

// publish decodes every file before writing any row, so a bad artifact
// leaves the table untouched.
func publish(ctx context.Context, stdout, stderr io.Writer, cfg config.Config, files []string) int {
	if len(files) == 0 {
		fmt.Fprintln(stderr, "publish: no artifact files given")
		return 2
	}
	payloads := make(map[string][]byte, len(files))
	for _, f := range files {
		name := filepath.Base(f)
		key := strings.TrimSuffix(name, cfg.ModelSuffix)
		if key == name || key == "" {
			fmt.Fprintf(stderr, "publish: %s: name must be <key>%s\n", f, cfg.ModelSuffix)
			return 1
		}
		b, err := os.ReadFile(f)
		if err != nil {
			fmt.Fprintf(stderr, "publish: %v\n", err)
			return 1
		}
		if _, err := model.DecodeBundle(key, bytes.NewReader(b)); err != nil {
			fmt.Fprintf(stderr, "publish: %s: %v\n", f, err)
			return 1
		}
		payloads[name] = b
	}

	driver := db.Driver(cfg.DBDriver)
	dbh, err := db.Open(ctx, driver, cfg.DBDSN)
	if err != nil {
		fmt.Fprintf(stderr, "publish: db open: %v\n", err)
		return 1
	}
	defer dbh.Close()
	if err := db.EnsureSchema(ctx, dbh, driver); err != nil {
		fmt.Fprintf(stderr, "publish: schema: %v\n", err)
		return 1
	}
	for name, b := range payloads {
		if err := db.PutArtifact(ctx, dbh, driver, name, b); err != nil {
			fmt.Fprintf(stderr, "publish: %v\n", err)
			return 1
		}
	}
	fmt.Fprintf(stdout, "published %d artifacts\n", len(payloads))
	return 0
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
