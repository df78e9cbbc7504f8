package commands

import (
	"fmt"
	"strconv"
	"strings"

	"taskpad/tasklist"
)

// descriptionSeparator splits "/add <title> | <description>"
const descriptionSeparator = "|"

// minSuffixLen is the shortest id suffix accepted as a task reference
const minSuffixLen = 3

func init() {
	Register(&Command{
		Name:        "/add",
		Description: "Add a task",
		Params: []Param{
			{Name: "title", Type: ParamTypeString, Description: "The title of the task", Required: true},
			{Name: "description", Type: ParamTypeString, Description: "Optional longer description of the task", Required: false},
		},
		Handler: func(args []string) bool {
			if len(args) == 0 {
				fmt.Println("Usage: /add <title> [| <description>]")
				return false
			}

			title, description := splitTitle(args)
			task, ok := GetController().AddTask(title, description)
			if !ok {
				fmt.Println("Usage: /add <title> [| <description>]")
				return false
			}

			fmt.Printf("Created task: %s (ID: %d)\n", task.Title, task.ID)
			return false
		},
	})

	Register(&Command{
		Name:        "/tasks",
		Description: "List tasks that match the current filter. Use this to find a task's ID when you have the title.",
		Handler: func(args []string) bool {
			c := GetController()

			fmt.Printf("Tasks (%s):\n", c.Filter())
			count := 0
			for t := range c.VisibleTasks() {
				count++
				printTask(c, t)
			}
			if count == 0 {
				fmt.Println("  No tasks available!")
			}

			return false
		},
	})

	Register(&Command{
		Name:        "/filter",
		Description: "Set which tasks /tasks shows",
		Params: []Param{
			{Name: "filter", Type: ParamTypeString, Description: "One of: all, active, completed", Required: true},
		},
		Handler: func(args []string) bool {
			if len(args) == 0 {
				fmt.Println("Usage: /filter <all|active|completed>")
				return false
			}

			c := GetController()
			if !c.SetFilter(args[0]) {
				fmt.Printf("Unknown filter %q, showing all tasks\n", args[0])
				return false
			}

			fmt.Printf("Filter set to: %s\n", c.Filter())
			return false
		},
	})

	Register(&Command{
		Name:        "/done",
		Description: "Mark a task as complete. Only available once per task when completion locking is on.",
		Params: []Param{
			{Name: "task_id", Type: ParamTypeString, Description: "The ID of the task to mark as complete", Required: true},
		},
		Handler: func(args []string) bool {
			if len(args) == 0 {
				fmt.Println("Usage: /done <task-id>")
				return false
			}

			c := GetController()
			id, err := resolveTaskID(c, args[0])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return false
			}

			if !c.MarkComplete(id) {
				fmt.Printf("Task %d was already marked complete\n", id)
				return false
			}

			printToggled(c, id)
			return false
		},
	})

	Register(&Command{
		Name:        "/toggle",
		Description: "Flip a task between active and completed",
		Params: []Param{
			{Name: "task_id", Type: ParamTypeString, Description: "The ID of the task to toggle", Required: true},
		},
		Handler: func(args []string) bool {
			if len(args) == 0 {
				fmt.Println("Usage: /toggle <task-id>")
				return false
			}

			c := GetController()
			id, err := resolveTaskID(c, args[0])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return false
			}

			c.ToggleCompletion(id)
			printToggled(c, id)
			return false
		},
	})

	Register(&Command{
		Name:        "/deltask",
		Description: "Delete a task",
		Params: []Param{
			{Name: "task_id", Type: ParamTypeString, Description: "The ID of the task to delete", Required: true},
		},
		Handler: func(args []string) bool {
			if len(args) == 0 {
				fmt.Println("Usage: /deltask <task-id>")
				return false
			}

			c := GetController()
			id, err := resolveTaskID(c, args[0])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return false
			}

			c.DeleteTask(id)
			fmt.Printf("Deleted task: %d\n", id)
			return false
		},
	})

	Register(&Command{
		Name:        "/reset",
		Description: "Delete every task and clear saved state",
		Destructive: true,
		Handler: func(args []string) bool {
			c := GetController()
			n := len(c.Tasks())
			c.Reset()
			fmt.Printf("Deleted %d tasks\n", n)
			return false
		},
	})
}

// splitTitle splits args at the first "|" into title and description
func splitTitle(args []string) (title, description string) {
	for i, a := range args {
		if a == descriptionSeparator {
			return strings.Join(args[:i], " "), strings.Join(args[i+1:], " ")
		}
	}
	return strings.Join(args, " "), ""
}

func printTask(c *tasklist.Controller, t tasklist.Task) {
	status := "[ ]"
	if t.Completed {
		status = "[✓]"
	}

	extraStr := ""
	if c.MarkersEnabled() && c.IsDisabled(t.ID) {
		extraStr = " (locked)"
	}

	fmt.Printf("  %s [%d] %s%s\n", status, t.ID, t.Title, extraStr)
	if t.Description != "" {
		fmt.Printf("        %s\n", t.Description)
	}
}

func printToggled(c *tasklist.Controller, id int64) {
	t, _ := c.Task(id)
	if t.Completed {
		fmt.Printf("Marked task %d as done ✓\n", id)
	} else {
		fmt.Printf("Marked task %d as not done\n", id)
	}
}

// resolveTaskID resolves a task reference to its full ID.
// It checks: exact ID match → ID suffix (min 3 digits)
func resolveTaskID(c *tasklist.Controller, ref string) (int64, error) {
	ref = strings.TrimPrefix(ref, "#")
	if _, err := strconv.ParseUint(ref, 10, 63); err != nil {
		return 0, fmt.Errorf("invalid task id: %s", ref)
	}

	tasks := c.Tasks()

	// First, try exact ID match
	for _, t := range tasks {
		if strconv.FormatInt(t.ID, 10) == ref {
			return t.ID, nil
		}
	}

	// Second, try ID suffix match
	if len(ref) >= minSuffixLen {
		var matches []int64
		for _, t := range tasks {
			if strings.HasSuffix(strconv.FormatInt(t.ID, 10), ref) {
				matches = append(matches, t.ID)
			}
		}
		if len(matches) == 1 {
			return matches[0], nil
		}
		if len(matches) > 1 {
			return 0, fmt.Errorf("ambiguous task ID suffix: %s (matches %d tasks)", ref, len(matches))
		}
	}

	return 0, fmt.Errorf("task not found: %s", ref)
}
