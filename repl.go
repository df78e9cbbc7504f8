package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"taskpad/commands"
)

const historyFile = "history"

func repl(ctx context.Context, dataDir string) error {
	// The memory backend never creates dataDir
	os.MkdirAll(dataDir, 0755)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       filepath.Join(dataDir, historyFile),
		AutoComplete:      completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("start shell: %w", err)
	}
	defer rl.Close()

	// Unblock Readline on SIGTERM
	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	fmt.Println("Welcome to taskpad! Type /help for available commands.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if !strings.HasPrefix(input, "/") {
			if commands.GetLLMClient() == nil {
				fmt.Println("Commands start with /. Type /help for available commands.")
				continue
			}
			input = "/chat " + input
		}

		if handleCommand(input) {
			return nil
		}
	}
}

// handleCommand runs one command line and reports whether to quit.
// Output of task commands is recorded as assistant context.
func handleCommand(input string) bool {
	name := strings.Fields(input)[0]
	cmd := commands.GetByName(name)
	if cmd == nil {
		fmt.Printf("Unknown command: %s. Type /help for available commands.\n", strings.ToLower(name))
		return false
	}

	if cmd.Hidden || commands.GetLLMClient() == nil {
		quit, _ := commands.Execute(input)
		return quit
	}

	quit, output, err := commands.ExecuteWithOutput(input)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return false
	}
	if output != "" {
		fmt.Println(output)
	}
	commands.AddCommandContext(input, output)
	return quit
}

func completer() *readline.PrefixCompleter {
	names := commands.Names()
	items := make([]readline.PrefixCompleterInterface, len(names))
	for i, name := range names {
		items[i] = readline.PcItem(name)
	}
	return readline.NewPrefixCompleter(items...)
}
