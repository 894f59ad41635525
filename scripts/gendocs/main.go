// Package main generates markdown reference documentation from the leapcheck
// sources: the CLI, the diagnostic codes and the configuration keys.
//
// Usage:
//
//	go run ./scripts/gendocs -gen=cli -outdir=docs/cli
//	go run ./scripts/gendocs -gen=codes -outdir=docs/reference
//	go run ./scripts/gendocs -gen=config -outdir=docs/reference
//	go run ./scripts/gendocs -gen=all
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
)

var (
	genFlag    = flag.String("gen", "all", "what to generate: cli, codes, config, all")
	outDirFlag = flag.String("outdir", "", "output directory (defaults based on gen type)")
)

func main() {
	flag.Parse()

	generators := map[string]struct {
		dir string
		fn  func(string) error
	}{
		"cli":    {filepath.Join("docs", "cli"), generateCLIDocs},
		"codes":  {filepath.Join("docs", "reference"), generateCodesDocs},
		"config": {filepath.Join("docs", "reference"), generateConfigDocs},
	}

	if _, ok := generators[*genFlag]; !ok && *genFlag != "all" {
		log.Fatalf("unknown -gen value: %s (use: cli, codes, config, all)", *genFlag)
	}

	// Find project root (where go.mod is)
	projectRoot, err := findProjectRoot()
	if err != nil {
		log.Fatalf("failed to find project root: %v", err)
	}
	log.Printf("Project root: %s", projectRoot)

	for _, name := range []string{"cli", "codes", "config"} {
		if *genFlag != "all" && *genFlag != name {
			continue
		}
		g := generators[name]
		outDir := *outDirFlag
		if outDir == "" || *genFlag == "all" {
			outDir = filepath.Join(projectRoot, g.dir)
		}
		if err := g.fn(outDir); err != nil {
			log.Fatalf("failed to generate %s docs: %v", name, err)
		}
	}

	log.Println("Done!")
}

// findProjectRoot walks up from current directory to find go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
