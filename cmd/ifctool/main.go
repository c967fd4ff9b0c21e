// ifctool is a CLI utility for inspecting IFC files and exporting their
// records as JSON chunks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/ifckit/internal/config"
	"github.com/Faultbox/ifckit/internal/engine/geometry"
	"github.com/Faultbox/ifckit/internal/logger"
	"github.com/Faultbox/ifckit/internal/metrics"
	"github.com/Faultbox/ifckit/internal/pipeline"
	"github.com/Faultbox/ifckit/internal/store"
	"github.com/Faultbox/ifckit/pkg/guid"
	"github.com/Faultbox/ifckit/pkg/ifc"
)

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.InitLogger(); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	command := args[0]
	args = args[1:]

	switch command {
	case "info":
		err = cmdInfo(ctx, cfg, args)
	case "tree":
		err = cmdTree(ctx, cfg, args)
	case "props", "p":
		err = cmdProps(ctx, cfg, args)
	case "guid":
		err = cmdGUID(args)
	case "export", "x":
		err = cmdExport(ctx, cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		err = errUsage
	}
	stop()

	if cfg.Metrics.Textfile != "" {
		if werr := metrics.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			logger.Warn("writing metrics", zap.Error(werr))
		}
	}
	logger.Sync()

	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func printUsage() {
	fmt.Println(`ifctool - IFC model inspection and export

Usage:
  ifctool [--config file] [--debug] [--chunk-size n] [--out dir] <command> [options]

Commands:
  info <file.ifc> [-geometry meshes.json]    Show extraction summary
  tree <file.ifc> [-view] [-depth n]          Print the spatial tree
  props <file.ifc> <expressID>                Print the property bag of an entity
  guid <value>                                Convert between compressed and canonical GlobalIds
  export <file.ifc> [dir] [-geometry meshes.json]
                                              Write JSON chunks for bulk insertion

Examples:
  ifctool info model.ifc
  ifctool tree -view model.ifc
  ifctool props model.ifc 1234
  ifctool guid 0YvctVUKr0kugbFTf53O9L
  ifctool --out ./chunks export -geometry meshes.json model.ifc`)
}

func usage(line string) error {
	fmt.Fprintln(os.Stderr, "Usage: ifctool "+line)
	return errUsage
}

func loadModel(ctx context.Context, cfg *config.Config, path, geometryPath string) (*pipeline.Model, error) {
	var src geometry.Source
	if geometryPath != "" {
		src = geometry.JSONFile(geometryPath)
	}
	return pipeline.Load(ctx, cfg, path, src)
}

func cmdInfo(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	geom := fs.String("geometry", "", "Geometry dump (JSON array of meshes)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return usage("info <file.ifc> [-geometry meshes.json]")
	}

	m, err := loadModel(ctx, cfg, fs.Arg(0), *geom)
	if err != nil {
		return err
	}
	defer m.Close()

	s := m.Summary
	fmt.Printf("File:          %s\n", s.Path)
	fmt.Printf("Entities:      %d\n", s.Entities)
	fmt.Printf("Relations:     %d\n", s.Relations)
	fmt.Printf("Property sets: %d\n", s.PropertySets)
	fmt.Printf("Properties:    %d\n", s.Properties)
	fmt.Printf("Tree nodes:    %d (%d edges dropped)\n", s.TreeNodes, s.DroppedEdges)
	if *geom != "" {
		fmt.Printf("Meshes:        %d (%d sub-meshes)\n", s.Meshes, s.SubMeshes)
	}
	fmt.Println()

	fmt.Println("Entities by type:")
	byType := make(map[string]int)
	for _, e := range m.Tables.Entities {
		byType[e.Type]++
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if byType[types[i]] != byType[types[j]] {
			return byType[types[i]] > byType[types[j]]
		}
		return types[i] < types[j]
	})
	for _, t := range types {
		fmt.Printf("  %-28s %d\n", t, byType[t])
	}

	fmt.Println()
	fmt.Println("Diagnostics:")
	fmt.Printf("  %-28s %d\n", "pattern_misses", s.PatternMisses)
	fmt.Printf("  %-28s %d\n", "decode_failures", s.DecodeFailures)
	fmt.Printf("  %-28s %d\n", "unresolved_values", s.Unresolved)
	for _, b := range ifc.Buckets {
		fmt.Printf("  %-28s %d\n", b, s.Dangling[b])
	}
	return nil
}

func cmdTree(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("tree", flag.ExitOnError)
	view := fs.Bool("view", false, "Group elements under type categories")
	depth := fs.Int("depth", 0, "Limit depth (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return usage("tree <file.ifc> [-view] [-depth n]")
	}

	m, err := loadModel(ctx, cfg, fs.Arg(0), "")
	if err != nil {
		return err
	}
	defer m.Close()

	if *view {
		printView(m.View, 0, *depth)
		return nil
	}
	m.Tree.Walk(func(n *ifc.Node, d int) bool {
		name := ""
		if e, ok := m.Tables.Entities[n.ExpressID]; ok {
			name = e.Name.String()
		}
		fmt.Printf("%s#%d %s %q [%s]\n", strings.Repeat("  ", d), n.ExpressID, n.Type, name, n.PersistentID)
		return *depth == 0 || d+1 < *depth
	})
	return nil
}

func printView(v *ifc.ViewNode, d, limit int) {
	if v == nil || (limit > 0 && d >= limit) {
		return
	}
	if v.Category {
		fmt.Printf("%s%s (%d)\n", strings.Repeat("  ", d), v.ID, len(v.Children))
	} else {
		fmt.Printf("%s#%d %s\n", strings.Repeat("  ", d), v.ExpressID, v.Type)
	}
	for _, c := range v.Children {
		printView(c, d+1, limit)
	}
}

func cmdProps(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("props", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 2 {
		return usage("props <file.ifc> <expressID>")
	}
	id, err := strconv.Atoi(strings.TrimPrefix(fs.Arg(1), "#"))
	if err != nil {
		return fmt.Errorf("invalid express id %q", fs.Arg(1))
	}

	m, err := loadModel(ctx, cfg, fs.Arg(0), "")
	if err != nil {
		return err
	}
	defer m.Close()

	bag := m.Resolver.Properties(id)
	if bag == nil {
		return fmt.Errorf("entity #%d not found", id)
	}
	fmt.Printf("#%d %s %s\n", bag.ExpressID, bag.Type, bag.GlobalID)

	flat := bag.Flatten()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-40s %v\n", k, flat[k])
	}
	return nil
}

func cmdGUID(args []string) error {
	if len(args) < 1 {
		return usage("guid <value|new>")
	}
	if args[0] == "new" {
		fmt.Println(guid.New())
		return nil
	}
	id, err := guid.Parse(args[0])
	if err != nil {
		return err
	}
	if guid.IsCompressed(args[0]) {
		fmt.Println(id.String())
	} else {
		fmt.Println(guid.Compress(id))
	}
	return nil
}

func cmdExport(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	geom := fs.String("geometry", "", "Geometry dump (JSON array of meshes)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return usage("export <file.ifc> [dir] [-geometry meshes.json]")
	}
	dir := cfg.Store.OutDir
	if fs.NArg() > 1 {
		dir = fs.Arg(1)
	}

	m, err := loadModel(ctx, cfg, fs.Arg(0), *geom)
	if err != nil {
		return err
	}
	defer m.Close()

	sink, err := store.NewDirSink(dir)
	if err != nil {
		return err
	}
	stats, err := m.Export(ctx, sink, cfg.StoreOptions(logger.Log))
	if err != nil {
		return err
	}

	tables := make([]string, 0, len(stats))
	for t := range stats {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		st := stats[t]
		fmt.Printf("%-12s %8d records  %4d chunks  %.2f MB\n", t, st.Records, st.Chunks, float64(st.Bytes)/(1024*1024))
	}
	fmt.Fprintf(os.Stderr, "\nExported to %s\n", dir)
	return nil
}
