// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/common/validation"
	"travel-concierge/pkg/registry"
)

const defaultRegistryPath = "configs/activities.json"

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		path := fs.String("path", defaultRegistryPath, "Path to registry file")
		fs.Parse(os.Args[2:])
		if err := listActivities(*path); err != nil {
			fmt.Printf("Error listing activities: %v\n", err)
			os.Exit(1)
		}

	case "update":
		fs := flag.NewFlagSet("update", flag.ExitOnError)
		path := fs.String("path", defaultRegistryPath, "Path to registry file")
		taskType := fs.String("taskType", "", "Task type to update (e.g., create-order-record)")
		field := fs.String("field", "", "Field to update (status, version, timeout, retries, description)")
		value := fs.String("value", "", "New value for the field")
		fs.Parse(os.Args[2:])
		if *taskType == "" || *field == "" || *value == "" {
			fmt.Println("Error: taskType, field, and value are required for update.")
			fs.Usage()
			os.Exit(1)
		}
		if err := updateActivity(*path, *taskType, *field, *value); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated %s: %s = %s\n", *taskType, *field, *value)

	case "validate":
		fs := flag.NewFlagSet("validate", flag.ExitOnError)
		path := fs.String("path", defaultRegistryPath, "Path to registry file")
		fs.Parse(os.Args[2:])
		problems, err := validateRegistry(*path)
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		if len(problems) > 0 {
			for _, p := range problems {
				fmt.Println("  -", p)
			}
			fmt.Printf("Registry validation failed with %d problem(s).\n", len(problems))
			os.Exit(1)
		}
		fmt.Println("Registry validation passed.")

	default:
		help()
	}
}

func listActivities(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}
	acts := append([]registry.Activity(nil), reg.Activities...)
	sort.Slice(acts, func(i, j int) bool {
		if acts[i].Category != acts[j].Category {
			return acts[i].Category < acts[j].Category
		}
		return acts[i].TaskType < acts[j].TaskType
	})
	fmt.Printf("Registry %s (%d activities, updated %s)\n", reg.Version, len(acts), reg.LastUpdated)
	for _, a := range acts {
		fmt.Printf("  %-16s %-28s %-12s timeout=%s retries=%d\n", a.Category, a.TaskType, a.Status, a.Timeout, a.Retries)
	}
	return nil
}

func updateActivity(path, taskType, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	a, ok := reg.Find(taskType)
	if !ok {
		return fmt.Errorf("activity with taskType %s not found", taskType)
	}

	switch field {
	case "status":
		status := registry.Status(value)
		if !status.Valid() {
			return fmt.Errorf("unknown status %q", value)
		}
		a.Status = status
	case "version":
		a.Version = value
	case "description":
		a.Description = value
	case "timeout":
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			return fmt.Errorf("invalid timeout %q", value)
		}
		a.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil || retries < 0 {
			return fmt.Errorf("invalid retries value %q", value)
		}
		a.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	reg.LastUpdated = time.Now().Format("2006-01-02")
	return saveRegistry(reg, path)
}

// validateRegistry loads the file and reports every activity that the
// worker-manager could not serve as described.
func validateRegistry(path string) ([]string, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	if len(reg.Activities) == 0 {
		return nil, fmt.Errorf("registry contains no activities")
	}

	thrown := map[string]bool{}
	for _, code := range apperrors.BPMNErrorMapping {
		thrown[code] = true
	}

	var problems []string
	for _, a := range reg.Activities {
		if a.DisplayName == "" || a.Category == "" {
			problems = append(problems, fmt.Sprintf("%s: displayName and category are required", a.TaskType))
		}
		if !a.Status.Valid() {
			problems = append(problems, fmt.Sprintf("%s: unknown status %q", a.TaskType, a.Status))
		}
		if a.Timeout != "" {
			if d, err := time.ParseDuration(a.Timeout); err != nil || d <= 0 {
				problems = append(problems, fmt.Sprintf("%s: invalid timeout %q", a.TaskType, a.Timeout))
			}
		}
		for _, code := range a.ErrorCodes {
			if !thrown[code] {
				problems = append(problems, fmt.Sprintf("%s: no worker throws error code %s", a.TaskType, code))
			}
		}
		if a.Status == registry.StatusImplemented && a.InputSchema == nil {
			problems = append(problems, fmt.Sprintf("%s: implemented activities need an inputSchema", a.TaskType))
		}
		if a.InputSchema != nil {
			if _, err := validation.NewSchemaValidator(a.InputSchema); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", a.TaskType, err))
			}
		}
	}
	return problems, nil
}

func saveRegistry(reg *registry.ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  list      Print the registered activities
  update    Change one field of an activity
  validate  Check statuses, timeouts, error codes and input schemas

Examples:
  registry-updater list
  registry-updater update -taskType index-order -field timeout -value 20s
  registry-updater validate -path configs/activities.json`)
}
