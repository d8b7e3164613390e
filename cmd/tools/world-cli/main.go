package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/annel0/blockworld/internal/app"
	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/storage"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config path (default BLOCKWORLD_CONFIG)")
		command    = flag.String("cmd", "show", "Command: show, edits, export, import, delete, column")
		name       = flag.String("world", "", "World name (default world.name from config)")
		chunk      = flag.String("chunk", "", "Chunk filter for edits, e.g. 0,-1")
		limit      = flag.Int("limit", 100, "Maximum number of edits to print")
		file       = flag.String("file", "", "File for export/import (default stdout/stdin)")
		x          = flag.Int("x", 0, "Column X")
		z          = flag.Int("z", 0, "Column Z")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	if *name == "" {
		*name = cfg.World.Name
	}
	if *name == "" {
		log.Fatalf("❌ World name is required (-world or world.name)")
	}

	opts := cliOptions{
		command: *command,
		name:    *name,
		chunk:   *chunk,
		limit:   *limit,
		file:    *file,
		x:       *x,
		z:       *z,
	}

	ctx := context.Background()
	store, err := app.OpenStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("❌ Failed to open storage: %v", err)
	}
	repo, err := storage.NewWorldRepo(store)
	if err != nil {
		_ = store.Close()
		log.Fatalf("❌ Failed to create repo: %v", err)
	}

	// log.Fatalf не выполняет defer: хранилище закрывается до выхода
	err = run(ctx, repo, cfg, opts, os.Stdin, os.Stdout)
	if cerr := repo.Close(); cerr != nil {
		log.Printf("⚠️ Failed to close storage: %v", cerr)
	}
	if errors.Is(err, errUnknownCommand) {
		fmt.Println("Available commands: show, edits, export, import, delete, column")
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

var errUnknownCommand = errors.New("unknown command")

type cliOptions struct {
	command string
	name    string
	chunk   string
	limit   int
	file    string
	x, z    int
}

// run выполняет одну команду над открытым репозиторием
func run(ctx context.Context, repo *storage.WorldRepo, cfg *config.Config, o cliOptions, stdin io.Reader, stdout io.Writer) error {
	switch o.command {
	case "show":
		return showWorld(ctx, repo, o.name, stdout)

	case "edits":
		opts := EditsOptions{Limit: o.limit}
		if o.chunk != "" {
			coord, err := parseChunk(o.chunk)
			if err != nil {
				return err
			}
			opts.Chunk = &coord
		}
		return listEdits(ctx, repo, o.name, opts, stdout)

	case "export":
		out := stdout
		if o.file != "" {
			f, err := os.Create(o.file)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return exportWorld(ctx, repo, o.name, out)

	case "import":
		in := stdin
		if o.file != "" {
			f, err := os.Open(o.file)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		return importWorld(ctx, repo, o.name, in, stdout)

	case "delete":
		if err := repo.DeleteWorld(ctx, o.name); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "🗑️ World %s deleted\n", o.name)
		return nil

	case "column":
		return showColumn(ctx, repo, o.name, generatorOptions(cfg), o.x, o.z, stdout)

	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, o.command)
	}
}

type EditsOptions struct {
	Chunk *vec.ChunkCoord
	Limit int
}

func generatorOptions(cfg *config.Config) world.GeneratorOptions {
	opts := world.DefaultGeneratorOptions()
	opts.TreeChance = cfg.World.TreeChance
	opts.Caves = cfg.World.Caves
	opts.Biomes = cfg.World.Biomes
	return opts
}

// showWorld выводит сводку по сохранению
func showWorld(ctx context.Context, repo *storage.WorldRepo, name string, out io.Writer) error {
	data, err := repo.LoadWorld(ctx, name)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "🌍 World %s\n", name)
	fmt.Fprintf(out, "  version: %d\n", data.Version)
	fmt.Fprintf(out, "  seed:    %d\n", data.Seed)
	fmt.Fprintf(out, "  edits:   %d\n", len(data.Edits))

	byKind := make(map[string]int)
	chunks := make(map[vec.ChunkCoord]struct{})
	for _, e := range data.Edits {
		byKind[e.Kind.String()]++
		chunks[e.Pos().ChunkCoord()] = struct{}{}
	}
	fmt.Fprintf(out, "  chunks:  %d\n", len(chunks))

	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(out, "    %-8s %d\n", k, byKind[k])
	}

	pos, ok, err := repo.LoadAgentPosition(ctx, name)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(out, "  agent:   (%.2f, %.2f, %.2f)\n", pos.X(), pos.Y(), pos.Z())
	}
	return nil
}

// listEdits выводит журнал изменений
func listEdits(ctx context.Context, repo *storage.WorldRepo, name string, opts EditsOptions, out io.Writer) error {
	data, err := repo.LoadWorld(ctx, name)
	if err != nil {
		return err
	}

	printed := 0
	for _, e := range data.Edits {
		if opts.Chunk != nil && e.Pos().ChunkCoord() != *opts.Chunk {
			continue
		}
		if opts.Limit > 0 && printed >= opts.Limit {
			break
		}
		fmt.Fprintf(out, "%d %d %d %s\n", e.X, e.Y, e.Z, e.Kind)
		printed++
	}

	fmt.Fprintf(out, "\n📊 Total edits: %d\n", printed)
	return nil
}

func exportWorld(ctx context.Context, repo *storage.WorldRepo, name string, out io.Writer) error {
	data, err := repo.LoadWorld(ctx, name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func importWorld(ctx context.Context, repo *storage.WorldRepo, name string, in io.Reader, out io.Writer) error {
	var data world.SaveData
	if err := json.NewDecoder(in).Decode(&data); err != nil {
		return fmt.Errorf("%w: %v", world.ErrInvalidSave, err)
	}
	if err := data.Validate(); err != nil {
		return err
	}
	if err := repo.SaveWorld(ctx, name, data); err != nil {
		return err
	}
	fmt.Fprintf(out, "📥 World %s imported: seed=%d, edits=%d\n", name, data.Seed, len(data.Edits))
	return nil
}

// showColumn восстанавливает чанк столбца с изменениями и выводит его
// содержимое сверху вниз отрезками одинаковых блоков
func showColumn(ctx context.Context, repo *storage.WorldRepo, name string, genOpts world.GeneratorOptions, x, z int, out io.Writer) error {
	data, err := repo.LoadWorld(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("world %s not found", name)
	}
	if err != nil {
		return err
	}

	opts := world.DefaultOptions()
	opts.Generator = genOpts
	w := world.NewWorldManager(data.Seed, opts)
	if err := w.Load(data); err != nil {
		return err
	}
	w.LoadAround(vec.Vec3{X: x, Z: z}, 0)

	fmt.Fprintf(out, "📍 Column (%d, %d), surface %d, biome %s\n", x, z, w.SurfaceHeight(x, z), w.Generator().Biome(x, z))
	for _, run := range columnRuns(w, x, z) {
		fmt.Fprintln(out, "  "+run)
	}
	return nil
}

func columnRuns(w *world.WorldManager, x, z int) []string {
	var runs []string
	top := vec.WorldHeight - 1
	for top >= 0 && w.GetBlock(x, top, z) == block.Air {
		top--
	}

	for y := top; y >= 0; {
		kind := w.GetBlock(x, y, z)
		end := y
		for end-1 >= 0 && w.GetBlock(x, end-1, z) == kind {
			end--
		}
		if end == y {
			runs = append(runs, fmt.Sprintf("%d: %s", y, kind))
		} else {
			runs = append(runs, fmt.Sprintf("%d-%d: %s", y, end, kind))
		}
		y = end - 1
	}
	return runs
}

func parseChunk(s string) (vec.ChunkCoord, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return vec.ChunkCoord{}, fmt.Errorf("invalid chunk %q, expected cx,cz", s)
	}
	cx, errX := strconv.Atoi(strings.TrimSpace(parts[0]))
	cz, errZ := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errX != nil || errZ != nil {
		return vec.ChunkCoord{}, fmt.Errorf("invalid chunk %q, expected cx,cz", s)
	}
	return vec.ChunkCoord{X: cx, Z: cz}, nil
}
