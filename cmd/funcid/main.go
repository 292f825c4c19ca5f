// Command funcid identifies library functions inside a stripped x86 ELF
// binary: for every routine the built-in linear-sweep CFG builder
// recovers, it reconstructs the routine's stack frame and probes it
// against the candidate catalogue, reporting the best match it finds.
//
// Structured the way the teacher's own CLI entry point is: a cobra root
// command plus subcommands, a mutex-guarded buffered output writer that
// prints the results once the identification sweep has returned, and a zap
// logger wired in before anything else runs.
package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/spf13/cobra"

	"github.com/archscan/funcid/internal/arch"
	"github.com/archscan/funcid/internal/catalogue"
	_ "github.com/archscan/funcid/internal/catalogue/builtin"
	"github.com/archscan/funcid/internal/catalogue/script"
	"github.com/archscan/funcid/internal/driver"
	"github.com/archscan/funcid/internal/loader"
	"github.com/archscan/funcid/internal/log"
	"github.com/archscan/funcid/internal/tui"
	"github.com/archscan/funcid/internal/ui/colorize"

	tea "github.com/charmbracelet/bubbletea"
)

// outputWriter buffers stdout writes behind a mutex; nothing is written
// until Flush. It is used after the identification sweep has finished.
type outputWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func newOutputWriter() *outputWriter {
	return &outputWriter{w: bufio.NewWriter(os.Stdout)}
}

func (ow *outputWriter) Printf(format string, args ...any) {
	ow.mu.Lock()
	defer ow.mu.Unlock()
	fmt.Fprintf(ow.w, format, args...)
}

func (ow *outputWriter) Flush() {
	ow.mu.Lock()
	defer ow.mu.Unlock()
	ow.w.Flush()
}

var (
	flagDebug      bool
	flagNumTests   int
	flagMaxSteps   int
	flagProfile    string
	flagScriptDirs []string
	flagTUI        bool
)

func main() {
	root := &cobra.Command{
		Use:   "funcid",
		Short: "Identify library functions in a binary routine's recovered CFG",
	}
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	root.PersistentFlags().IntVar(&flagNumTests, "num-tests", driver.DefaultNumTests, "test vectors per candidate")
	root.PersistentFlags().IntVar(&flagMaxSteps, "max-steps", 1_000_000, "max instructions per probe call")
	root.PersistentFlags().StringVar(&flagProfile, "profile", "", "YAML candidate profile")
	root.PersistentFlags().StringArrayVar(&flagScriptDirs, "script", nil, "path to a scripted candidate (goja), repeatable")
	root.PersistentFlags().BoolVar(&flagTUI, "tui", false, "show a live progress view during identify")

	root.AddCommand(identifyCmd(), infoCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorize.Error(err.Error()))
		os.Exit(1)
	}
}

func setup() error {
	log.Init(flagDebug)
	if flagProfile != "" {
		if _, err := catalogue.LoadProfile(flagProfile); err != nil {
			return err
		}
	}
	for _, path := range flagScriptDirs {
		cand, err := script.Load(path)
		if err != nil {
			return fmt.Errorf("load script candidate %s: %w", path, err)
		}
		catalogue.Default.Register(cand.Name(), cand.NumArgs(), func() catalogue.Candidate { return cand })
	}
	return nil
}

func identifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identify <binary>",
		Short: "Identify every non-syscall routine in a binary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(); err != nil {
				return err
			}
			img, err := loader.Load(args[0])
			if err != nil {
				return err
			}
			routines := img.BuildCFG()

			opts := driver.Options{
				Arch:      arch.X86,
				Catalogue: catalogue.Default,
				Segments:  img.ProbeSegments(),
				NumTests:  flagNumTests,
				MaxSteps:  flagMaxSteps,
				Logger:    log.L,
			}

			var program *tea.Program
			var tuiDone chan struct{}
			if flagTUI {
				model := tui.NewModel(len(routines))
				program = tea.NewProgram(model)
				opts.OnResult = func(r driver.Result) { tui.Feed(program, r) }
				tuiDone = make(chan struct{})
				go func() {
					program.Run()
					close(tuiDone)
				}()
			}

			results := driver.Run(routines, opts)

			if program != nil {
				tui.Done(program)
				<-tuiDone
			}

			ow := newOutputWriter()
			sort.Slice(results, func(i, j int) bool { return results[i].Routine.Entry < results[j].Routine.Entry })
			for _, res := range results {
				addr := colorize.Address(uint64(res.Routine.Entry))
				name := colorize.FuncName(res.Routine.Name)
				switch {
				case res.Err != nil:
					ow.Printf("%s  %s  %s\n", addr, name, colorize.Detail("unreconstructed: "+res.Err.Error()))
				case res.Candidate != "":
					ow.Printf("%s  %s  -> %s\n", addr, name, colorize.Match(res.Candidate))
				default:
					ow.Printf("%s  %s  %s\n", addr, name, colorize.Detail("no match"))
				}
			}
			ow.Flush()
			return nil
		},
	}
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <binary>",
		Short: "Show loaded image and candidate catalogue information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(); err != nil {
				return err
			}
			img, err := loader.Load(args[0])
			if err != nil {
				return err
			}
			showInfo(img)
			return nil
		},
	}
}

func showInfo(img *loader.Image) {
	fmt.Printf("%s  machine=%s entry=%s base=%s\n",
		img.Path, img.Machine, colorize.Address(img.Entry), colorize.Address(img.Base))
	fmt.Printf("segments: %d  symbols: %d  imports: %d\n", len(img.Segments), len(img.Symbols), len(img.Imports))
	fmt.Println("candidates:")
	for _, name := range catalogue.Default.Names() {
		fmt.Printf("  %s\n", name)
	}
}
