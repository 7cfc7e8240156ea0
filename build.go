//go:build ignore

// build.go - backfill build system
// Usage: go run build.go [-target=TARGET]
// Targets: all, web, cli, test, clean, release

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const module = "backfill"

// BuildContext holds configuration for the build process
type BuildContext struct {
	Verbose bool
	GOOS    string
	GOARCH  string
}

var (
	distDir = "dist"

	// Executable names (key = source dir name, value = output name)
	executables = map[string]string{
		"backfill-web": "backfill-web",
		"reconcile":    "reconcile",
	}

	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
)

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	goos := flag.String("os", runtime.GOOS, "Target GOOS")
	goarch := flag.String("arch", runtime.GOARCH, "Target GOARCH")
	flag.Parse()

	printHeader()
	startTime := time.Now()

	ctx := &BuildContext{Verbose: *verbose, GOOS: *goos, GOARCH: *goarch}

	var err error
	switch *target {
	case "all":
		err = buildAll(ctx)
	case "web":
		err = buildExecutable("backfill-web", ctx)
	case "cli":
		err = buildExecutable("reconcile", ctx)
	case "test":
		err = runTests(ctx.Verbose)
	case "clean":
		err = os.RemoveAll(distDir)
	case "release":
		err = buildRelease(ctx)
	default:
		showHelp()
		os.Exit(1)
	}
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "        backfill - Build System            " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func buildAll(ctx *BuildContext) error {
	printInfo("Building all executables...")
	for name := range executables {
		if err := buildExecutable(name, ctx); err != nil {
			return err
		}
	}
	return nil
}

// gitCommit returns the short HEAD hash, or "unknown" outside a repository
func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func buildExecutable(name string, ctx *BuildContext) error {
	outName, ok := executables[name]
	if !ok {
		return fmt.Errorf("unknown executable: %s", name)
	}
	if ctx.GOOS == "windows" {
		outName += ".exe"
	}

	printInfo(fmt.Sprintf("Building %s for %s/%s...", name, ctx.GOOS, ctx.GOARCH))
	outputPath := filepath.Join(distDir, ctx.GOOS+"_"+ctx.GOARCH, outName)

	ldflags := fmt.Sprintf("-s -w -X %s/pkg/contracts.BuildTime=%s -X %s/pkg/contracts.GitCommit=%s",
		module, time.Now().UTC().Format(time.RFC3339), module, gitCommit())

	args := []string{"build"}
	if ctx.Verbose {
		args = append(args, "-v")
	}
	args = append(args, "-trimpath", "-ldflags", ldflags, "-o", outputPath, "./cmd/"+name)

	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0", "GOOS="+ctx.GOOS, "GOARCH="+ctx.GOARCH)
	cmd.Stderr = os.Stderr
	if ctx.Verbose {
		fmt.Printf("Running: go %s\n", strings.Join(args, " "))
		cmd.Stdout = os.Stdout
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to build %s: %w", name, err)
	}

	if info, err := os.Stat(outputPath); err == nil {
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", outputPath, float64(info.Size())/1024/1024))
	}
	return nil
}

func runTests(verbose bool) error {
	printInfo("Running Go tests...")
	args := []string{"test", "-race"}
	if verbose {
		args = append(args, "-v")
	}
	args = append(args, "./...")

	cmd := exec.Command("go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go tests failed: %w", err)
	}
	printSuccess("All tests passed")
	return nil
}

// buildRelease cross-compiles every executable for the supported platforms
func buildRelease(ctx *BuildContext) error {
	printInfo("Building release...")
	if err := os.RemoveAll(distDir); err != nil {
		return err
	}
	for _, platform := range [][2]string{{"linux", "amd64"}, {"windows", "amd64"}, {"darwin", "arm64"}} {
		c := *ctx
		c.GOOS, c.GOARCH = platform[0], platform[1]
		if err := buildAll(&c); err != nil {
			return err
		}
	}
	return nil
}

func showHelp() {
	fmt.Println("Usage: go run build.go [-target=TARGET] [-v] [-os=GOOS] [-arch=GOARCH]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all      Build backfill-web and reconcile (default)")
	fmt.Println("  web      Build the web service")
	fmt.Println("  cli      Build the reconcile command")
	fmt.Println("  test     Run Go tests with -race")
	fmt.Println("  clean    Remove dist/")
	fmt.Println("  release  Cross-compile for linux, windows and darwin")
}
