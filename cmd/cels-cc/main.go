// Command cels-cc compiles a directory of Celesta sources to a single
// C++ translation unit.
//
// Usage:
//
//	cels-cc -d<dir> -o<file> [-he<name>]... [-hi<name>]...
//
// -d names the source directory (required), -o the output file
// (required); -he adds #include <name> to the prologue, -hi adds
// #include "name". The exit code is 0 on success and non-zero on any
// compile error.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/viant/afs"
)

var version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	// An optional .env can set CELS_LR1_CACHE and friends.
	_ = godotenv.Load()

	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// normalizeFlags converts the compiler's single-dash attached-value
// flags (-dsrc, -oout.cpp, -hevector, -himy.h) to the long form pflag
// understands.
func normalizeFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "-he") && len(arg) > 3:
			out = append(out, "--system-include="+arg[3:])
		case strings.HasPrefix(arg, "-hi") && len(arg) > 3:
			out = append(out, "--local-include="+arg[3:])
		case strings.HasPrefix(arg, "-d") && len(arg) > 2 && !strings.HasPrefix(arg, "--"):
			out = append(out, "--source-dir="+arg[2:])
		case strings.HasPrefix(arg, "-o") && len(arg) > 2 && !strings.HasPrefix(arg, "--"):
			out = append(out, "--output="+arg[2:])
		default:
			out = append(out, arg)
		}
	}
	return out
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var (
		sourceDir      string
		outputFile     string
		systemIncludes []string
		localIncludes  []string
	)

	cmd := &cobra.Command{
		Use:           "cels-cc",
		Short:         "Celesta to C++ compiler",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sourceDir == "" || outputFile == "" {
				fmt.Fprintln(errOut, "cels-cc: both -d<dir> and -o<file> are required")
				return fmt.Errorf("missing required flags")
			}
			p := &pipeline{
				fs:             afs.New(),
				sourceDir:      sourceDir,
				outputFile:     outputFile,
				systemIncludes: systemIncludes,
				localIncludes:  localIncludes,
			}
			if err := p.compile(cmd.Context()); err != nil {
				fmt.Fprintf(errOut, "cels-cc: %v\n", err)
				return err
			}
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.Flags().StringVarP(&sourceDir, "source-dir", "d", "", "source directory (required)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "output C++ file (required)")
	cmd.Flags().StringArrayVar(&systemIncludes, "system-include", nil, "add #include <name> to the prologue")
	cmd.Flags().StringArrayVar(&localIncludes, "local-include", nil, "add #include \"name\" to the prologue")
	return cmd
}
