// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	md2man "github.com/cpuguy83/go-md2man/v2/md2man"
	"github.com/urfave/cli/v3"

	"github.com/staranto/brickify/internal/command"
)

// Minimal doc generator. For every brickify subcommand it writes:
//   - docs/commands/brickify-<cmd>.md built from the command definition
//   - docs/man/share/man1/brickify-<cmd>.1 via md2man

func main() {
	var (
		repoRoot           string
		writeOnlyIfChanged bool
	)

	flag.StringVar(&repoRoot, "root", ".", "repo root (default current dir)")
	flag.BoolVar(&writeOnlyIfChanged, "only-if-changed", true, "only write files if content changed")
	flag.Parse()

	commandsDir := filepath.Join(repoRoot, "docs", "commands")
	manOutDir := filepath.Join(repoRoot, "docs", "man", "share", "man1")

	for _, dir := range []string{commandsDir, manOutDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatalf("creating output dir %s: %v", dir, err)
		}
	}

	app, err := command.InitApp(context.Background(), []string{"brickify"})
	if err != nil {
		fatalf("building command tree: %v", err)
	}

	var processed int
	for _, cmd := range app.Commands {
		if cmd.Hidden {
			continue
		}
		md := commandMarkdown(cmd)

		mdPath := filepath.Join(commandsDir, fmt.Sprintf("brickify-%s.md", cmd.Name))
		if err := writeFileIfChanged(mdPath, []byte(md), writeOnlyIfChanged); err != nil {
			fatalf("writing markdown for %s: %v", cmd.Name, err)
		}

		manPath := filepath.Join(manOutDir, fmt.Sprintf("brickify-%s.1", cmd.Name))
		if err := writeFileIfChanged(manPath, md2man.Render([]byte(md)), writeOnlyIfChanged); err != nil {
			fatalf("writing man page for %s: %v", cmd.Name, err)
		}

		processed++
	}

	if processed == 0 {
		fatalf("no commands found")
	}
}

func fatalf(f string, a ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
	os.Exit(1)
}

func writeFileIfChanged(path string, new []byte, onlyIfChanged bool) error {
	if !onlyIfChanged {
		return os.WriteFile(path, new, 0o644)
	}
	old, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return os.WriteFile(path, new, 0o644)
		}
		return err
	}
	if bytes.Equal(bytes.TrimSpace(old), bytes.TrimSpace(new)) {
		return nil
	}
	return os.WriteFile(path, new, 0o644)
}

type usager interface {
	GetUsage() string
}

type envVarser interface {
	GetEnvVars() []string
}

// commandMarkdown renders cmd as a man-style markdown page.
func commandMarkdown(cmd *cli.Command) string {
	var b strings.Builder
	name := "brickify-" + cmd.Name

	fmt.Fprintf(&b, "%% %s(1) brickify | brickify manual\n\n", strings.ToUpper(name))

	b.WriteString("# NAME\n\n")
	fmt.Fprintf(&b, "%s - %s\n\n", name, cmd.Usage)

	b.WriteString("# SYNOPSIS\n\n")
	synopsis := cmd.UsageText
	if synopsis == "" {
		synopsis = "brickify " + cmd.Name + " [options]"
	}
	fmt.Fprintf(&b, "`%s`\n", sanitizeCommand(synopsis))

	if len(cmd.Flags) == 0 {
		return b.String()
	}

	b.WriteString("\n# OPTIONS\n")
	for _, f := range cmd.Flags {
		names := make([]string, 0, len(f.Names()))
		for _, n := range f.Names() {
			if len(n) == 1 {
				names = append(names, "-"+n)
			} else {
				names = append(names, "--"+n)
			}
		}
		fmt.Fprintf(&b, "\n**%s**\n", strings.Join(names, ", "))

		desc := ""
		if u, ok := f.(usager); ok {
			desc = u.GetUsage()
		}
		if e, ok := f.(envVarser); ok && len(e.GetEnvVars()) > 0 {
			desc = strings.TrimSpace(desc + " (env " + strings.Join(e.GetEnvVars(), ", ") + ")")
		}
		if desc != "" {
			fmt.Fprintf(&b, ": %s\n", desc)
		}
	}
	return b.String()
}

func sanitizeCommand(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
