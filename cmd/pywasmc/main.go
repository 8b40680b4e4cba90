// Command pywasmc compiles an AST-JSON file into a WebAssembly Text module.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"pywasmc/internal/cache"
	"pywasmc/internal/ld"
)

var (
	outFlag     = flag.String("o", "", "output .wat file (default: the input path with its extension replaced by .wat)")
	targetFlag  = flag.String("target", "full", "engine capability profile (full)")
	moduleFlag  = flag.String("module", "", "module path to stamp into the output, validated like a Go import path")
	versionFlag = flag.String("version", "", "semantic version to stamp alongside -module")
	cacheFlag   = flag.String("cache", "", "cache directory; empty disables caching")
	profileFlag = flag.String("profile", "", "write a pprof phase-timing profile to this file")
	sflag       = flag.Bool("S", false, "print the assembled WAT to stderr as well as writing -o")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: pywasmc [flags] input.ast.json\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("pywasmc: ")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
	}
	inputPath := flag.Arg(0)

	identity := ld.Identity{Path: *moduleFlag, Version: *versionFlag}
	if err := ld.ValidateIdentity(identity); err != nil {
		log.Fatal(err)
	}

	timer := &ld.PhaseTimer{}
	astBytes, err := os.ReadFile(inputPath)
	if err != nil {
		log.Fatalf("reading %s: %v", inputPath, err)
	}

	var store *cache.Dir
	var lock *cache.Lock
	var id cache.ID
	if *cacheFlag != "" {
		d := cache.Dir{Root: *cacheFlag}
		store = &d
		lock, err = cache.LockDir(*cacheFlag)
		if err != nil {
			log.Fatal(err)
		}
		defer lock.Unlock()
		id = cache.Sum(astBytes, version)
		if text, ok := store.Get(id); ok {
			writeOutput(inputPath, text)
			return
		}
	}

	t0 := time.Now()
	out, err := compileModuleWithIdentity(astBytes, *targetFlag, identity)
	if err != nil {
		log.Fatalf("compiling %s: %v", inputPath, err)
	}
	timer.Record("compile", time.Since(t0))

	if store != nil {
		if err := store.Put(id, out); err != nil {
			log.Fatal(err)
		}
	}

	if *profileFlag != "" {
		f, err := os.Create(*profileFlag)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		if err := timer.WriteProfile(f); err != nil {
			log.Fatal(err)
		}
	}

	writeOutput(inputPath, out)
}

// version is stamped at build time in a release; left fixed for a
// from-source build.
const version = "dev"

func writeOutput(inputPath, text string) {
	if *sflag {
		fmt.Fprintln(os.Stderr, text)
	}
	out := *outFlag
	if out == "" {
		out = trimExt(inputPath) + ".wat"
	}
	if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
		log.Fatalf("writing %s: %v", out, err)
	}
}

func trimExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return path
}
