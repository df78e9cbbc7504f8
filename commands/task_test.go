package commands

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"taskpad/storage"
	"taskpad/tasklist"
)

// fixedIDs hands out ids from a list, then counts up from the last one
type fixedIDs struct {
	ids  []int64
	next int64
}

func (f *fixedIDs) Next() int64 {
	if len(f.ids) > 0 {
		id := f.ids[0]
		f.ids = f.ids[1:]
		f.next = id + 1
		return id
	}
	f.next++
	return f.next - 1
}

// setupTestController creates a file-backed controller for testing
func setupTestController(t *testing.T, markers bool, ids ...int64) *tasklist.Controller {
	t.Helper()

	ns, err := storage.NewFileNamespace(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("Failed to create test namespace: %v", err)
	}

	if len(ids) == 0 {
		ids = []int64{1}
	}
	c := tasklist.New(storage.NewAdapter(ns, zerolog.Nop()), tasklist.Options{
		SupportDisablePersistence: markers,
		IDs:                       &fixedIDs{ids: ids},
		Logger:                    zerolog.Nop(),
	})
	c.Initialize()
	SetController(c)

	return c
}

// captureCommandOutput runs a command and captures its stdout
func captureCommandOutput(t *testing.T, input string) string {
	t.Helper()

	output := captureOutput(func() {
		Execute(input)
	})

	return output
}

func TestTaskCommands(t *testing.T) {
	setupTestController(t, false)

	// Create a task
	output := captureCommandOutput(t, "/add Buy groceries | milk and eggs")
	if !strings.Contains(output, "Created task: Buy groceries (ID: 1)") {
		t.Errorf("Expected task creation message, got: %s", output)
	}

	// List tasks
	output = captureCommandOutput(t, "/tasks")
	if !strings.Contains(output, "[ ] [1] Buy groceries") {
		t.Errorf("Expected unchecked task in list, got: %s", output)
	}
	if !strings.Contains(output, "milk and eggs") {
		t.Errorf("Expected description in list, got: %s", output)
	}

	// Mark as done
	output = captureCommandOutput(t, "/done 1")
	if !strings.Contains(output, "Marked task 1 as done") {
		t.Errorf("Expected done message, got: %s", output)
	}

	// Verify done status in list
	output = captureCommandOutput(t, "/tasks")
	if !strings.Contains(output, "[✓]") {
		t.Errorf("Expected checked status, got: %s", output)
	}

	// Toggle back
	output = captureCommandOutput(t, "/toggle 1")
	if !strings.Contains(output, "Marked task 1 as not done") {
		t.Errorf("Expected undone message, got: %s", output)
	}

	// Delete task
	output = captureCommandOutput(t, "/deltask 1")
	if !strings.Contains(output, "Deleted task: 1") {
		t.Errorf("Expected deletion message, got: %s", output)
	}

	// Verify task is gone
	output = captureCommandOutput(t, "/tasks")
	if strings.Contains(output, "Buy groceries") {
		t.Errorf("Deleted task should not appear in list, got: %s", output)
	}
	if !strings.Contains(output, "No tasks available!") {
		t.Errorf("Expected empty list message, got: %s", output)
	}
}

func TestAddBlankTitle(t *testing.T) {
	c := setupTestController(t, false)

	output := captureCommandOutput(t, "/add | only a description")
	if !strings.Contains(output, "Usage: /add") {
		t.Errorf("Expected usage message for blank title, got: %s", output)
	}
	if n := len(c.Tasks()); n != 0 {
		t.Errorf("Expected no tasks, got %d", n)
	}
}

func TestDoneLockedWithMarkers(t *testing.T) {
	setupTestController(t, true)

	captureCommandOutput(t, "/add Write report")
	captureCommandOutput(t, "/done 1")

	output := captureCommandOutput(t, "/tasks")
	if !strings.Contains(output, "(locked)") {
		t.Errorf("Expected locked marker in list, got: %s", output)
	}

	output = captureCommandOutput(t, "/done 1")
	if !strings.Contains(output, "Task 1 was already marked complete") {
		t.Errorf("Expected refusal message, got: %s", output)
	}

	// Direct toggle still works
	output = captureCommandOutput(t, "/toggle 1")
	if !strings.Contains(output, "Marked task 1 as not done") {
		t.Errorf("Expected toggle to flip the task, got: %s", output)
	}
}

func TestFilterCommand(t *testing.T) {
	setupTestController(t, false)

	captureCommandOutput(t, "/add Active task")
	captureCommandOutput(t, "/add Finished task")
	captureCommandOutput(t, "/toggle 2")

	tests := []struct {
		filter  string
		message string
		present []string
		absent  []string
	}{
		{"active", "Filter set to: active", []string{"Active task"}, []string{"Finished task"}},
		{"completed", "Filter set to: completed", []string{"Finished task"}, []string{"Active task"}},
		{"bogus", `Unknown filter "bogus", showing all tasks`, []string{"Active task", "Finished task"}, nil},
		{"all", "Filter set to: all", []string{"Active task", "Finished task"}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.filter, func(t *testing.T) {
			output := captureCommandOutput(t, "/filter "+tc.filter)
			if !strings.Contains(output, tc.message) {
				t.Errorf("Expected %q, got: %s", tc.message, output)
			}

			output = captureCommandOutput(t, "/tasks")
			for _, p := range tc.present {
				if !strings.Contains(output, p) {
					t.Errorf("Expected %q in list, got: %s", p, output)
				}
			}
			for _, a := range tc.absent {
				if strings.Contains(output, a) {
					t.Errorf("Did not expect %q in list, got: %s", a, output)
				}
			}
		})
	}
}

func TestResolveTaskIDSuffix(t *testing.T) {
	c := setupTestController(t, false, 1718000000123, 1718000000456, 1718000001456)

	captureCommandOutput(t, "/add first")
	captureCommandOutput(t, "/add second")
	captureCommandOutput(t, "/add third")

	// Exact ID
	id, err := resolveTaskID(c, "1718000000123")
	if err != nil || id != 1718000000123 {
		t.Errorf("Failed to resolve exact ID: %d, %v", id, err)
	}

	// Unique suffix
	id, err = resolveTaskID(c, "123")
	if err != nil || id != 1718000000123 {
		t.Errorf("Failed to resolve by suffix: %d, %v", id, err)
	}

	// Leading # is accepted
	id, err = resolveTaskID(c, "#0456")
	if err != nil || id != 1718000000456 {
		t.Errorf("Failed to resolve by #suffix: %d, %v", id, err)
	}

	// Ambiguous suffix
	_, err = resolveTaskID(c, "456")
	if err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("Expected ambiguous error, got: %v", err)
	}

	// Too short
	_, err = resolveTaskID(c, "23")
	if err == nil || !strings.Contains(err.Error(), "task not found") {
		t.Errorf("Expected not found for short suffix, got: %v", err)
	}

	// Not a number
	_, err = resolveTaskID(c, "abc")
	if err == nil || !strings.Contains(err.Error(), "invalid task id") {
		t.Errorf("Expected invalid id error, got: %v", err)
	}

	// Through a command
	output := captureCommandOutput(t, "/done 123")
	if !strings.Contains(output, "Marked task 1718000000123 as done") {
		t.Errorf("Expected done via suffix, got: %s", output)
	}
}

func TestUnknownTask(t *testing.T) {
	setupTestController(t, true)

	for _, cmd := range []string{"/done 999", "/toggle 999", "/deltask 999"} {
		output := captureCommandOutput(t, cmd)
		if !strings.Contains(output, "task not found: 999") {
			t.Errorf("%s: expected task not found, got: %s", cmd, output)
		}
	}
}

func TestResetCommand(t *testing.T) {
	c := setupTestController(t, true)

	captureCommandOutput(t, "/add one")
	captureCommandOutput(t, "/add two")
	captureCommandOutput(t, "/done 1")

	output := captureCommandOutput(t, "/reset")
	if !strings.Contains(output, "Deleted 2 tasks") {
		t.Errorf("Expected reset message, got: %s", output)
	}
	if n := len(c.Tasks()); n != 0 {
		t.Errorf("Expected no tasks after reset, got %d", n)
	}
	if n := len(c.DisabledIDs()); n != 0 {
		t.Errorf("Expected no markers after reset, got %d", n)
	}
}

func TestTasksPersistAcrossControllers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	open := func() *tasklist.Controller {
		ns, err := storage.NewFileNamespace(dir)
		if err != nil {
			t.Fatalf("Failed to create namespace: %v", err)
		}
		c := tasklist.New(storage.NewAdapter(ns, zerolog.Nop()), tasklist.Options{
			SupportDisablePersistence: true,
			IDs:                       &fixedIDs{ids: []int64{10}},
			Logger:                    zerolog.Nop(),
		})
		c.Initialize()
		SetController(c)
		return c
	}

	open()
	captureCommandOutput(t, "/add Survives restart")
	captureCommandOutput(t, "/done 10")

	open()
	output := captureCommandOutput(t, "/tasks")
	if !strings.Contains(output, "[✓] [10] Survives restart (locked)") {
		t.Errorf("Expected restored, locked task, got: %s", output)
	}
}

func TestCommandUsageMessages(t *testing.T) {
	setupTestController(t, false)

	tests := []struct {
		command  string
		expected string
	}{
		{"/add", "Usage: /add <title>"},
		{"/filter", "Usage: /filter <all|active|completed>"},
		{"/done", "Usage: /done <task-id>"},
		{"/toggle", "Usage: /toggle <task-id>"},
		{"/deltask", "Usage: /deltask <task-id>"},
		{"/chat", "Usage: /chat <message>"},
	}

	for _, tc := range tests {
		t.Run(tc.command, func(t *testing.T) {
			output := captureCommandOutput(t, tc.command)
			if !strings.Contains(output, tc.expected) {
				t.Errorf("Expected usage message %q, got: %s", tc.expected, output)
			}
		})
	}
}

func TestChatWithoutClient(t *testing.T) {
	setupTestController(t, false)
	SetLLMClient(nil)

	output := captureCommandOutput(t, "/chat hello")
	if !strings.Contains(output, "LLM client not available") {
		t.Errorf("Expected unavailable message, got: %s", output)
	}
}

func TestSplitTitle(t *testing.T) {
	tests := []struct {
		args        []string
		title, desc string
	}{
		{[]string{"Buy", "milk"}, "Buy milk", ""},
		{[]string{"Buy", "milk", "|", "2%", "organic"}, "Buy milk", "2% organic"},
		{[]string{"a", "|", "b", "|", "c"}, "a", "b | c"},
		{[]string{"|", "desc"}, "", "desc"},
	}
	for _, tc := range tests {
		title, desc := splitTitle(tc.args)
		if title != tc.title || desc != tc.desc {
			t.Errorf("splitTitle(%v) = %q, %q; want %q, %q", tc.args, title, desc, tc.title, tc.desc)
		}
	}
}
