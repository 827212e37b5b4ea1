package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"family-assistant/pkg/registry"
)

var registryPath string

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and maintain the activity registry",
	Long: `Manage configs/activity-registry.json, the catalogue of job worker task
types and their input/output schemas.

Available subcommands:
  validate - Check the registry for structural problems
  list     - Print every registered task type
  add      - Register a new activity
  update   - Change one field of an activity`,
}

var registryValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the registry for structural problems",
	Args:  cobra.NoArgs,
	RunE:  runRegistryValidate,
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every registered task type",
	Args:  cobra.NoArgs,
	RunE:  runRegistryList,
}

var (
	addID          string
	addDisplayName string
	addDescription string
	addCategory    string
	addTaskType    string
	addVersion     string
	addStatus      string
)

var registryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new activity",
	Long: `Adds an activity with empty schemas to the registry, creating the file
when it does not exist yet.

Example:
  assistant-cli registry add --id assistant.reminder.send --displayName "Send Reminder" \
    --description "Sends a family reminder" --category assistant --taskType send-reminder`,
	Args: cobra.NoArgs,
	RunE: runRegistryAdd,
}

var registryUpdateCmd = &cobra.Command{
	Use:   "update [id] [field] [value]",
	Short: "Change one field of an activity",
	Long: `Updates one field of the activity with the given id. Fields: status,
version, displayName, description, category, taskType, timeout, retries.`,
	Args: cobra.ExactArgs(3),
	RunE: runRegistryUpdate,
}

func init() {
	registryCmd.PersistentFlags().StringVar(&registryPath, "path", "configs/activity-registry.json", "path to the registry file")

	registryAddCmd.Flags().StringVar(&addID, "id", "", "activity id (e.g. assistant.message.process)")
	registryAddCmd.Flags().StringVar(&addDisplayName, "displayName", "", "display name")
	registryAddCmd.Flags().StringVar(&addDescription, "description", "", "description")
	registryAddCmd.Flags().StringVar(&addCategory, "category", "", "category (e.g. assistant)")
	registryAddCmd.Flags().StringVar(&addTaskType, "taskType", "", "Zeebe task type")
	registryAddCmd.Flags().StringVar(&addVersion, "version", "1.0.0", "version")
	registryAddCmd.Flags().StringVar(&addStatus, "status", "planned", "implementation status (planned, in-progress, completed, verified)")
	for _, name := range []string{"id", "displayName", "description", "category", "taskType"} {
		_ = registryAddCmd.MarkFlagRequired(name)
	}

	registryCmd.AddCommand(registryValidateCmd, registryListCmd, registryAddCmd, registryUpdateCmd)
	rootCmd.AddCommand(registryCmd)
}

func runRegistryValidate(cmd *cobra.Command, args []string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if len(reg.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	problems := reg.Validate()
	for _, a := range reg.Activities {
		if a.ID == "" {
			continue
		}
		if a.DisplayName == "" {
			problems = append(problems, fmt.Sprintf("activity %s: missing displayName", a.ID))
		}
		if a.Category == "" {
			problems = append(problems, fmt.Sprintf("activity %s: missing category", a.ID))
		}
	}
	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintln(cmd.ErrOrStderr(), p)
		}
		return fmt.Errorf("registry validation failed with %d problem(s)", len(problems))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d activities.\n", len(reg.Activities))
	return nil
}

func runRegistryList(cmd *cobra.Command, args []string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	for _, a := range reg.Activities {
		fmt.Fprintf(cmd.OutOrStdout(), "%-28s %-32s %s\n", a.TaskType, a.ID, a.ImplementationStatus)
	}
	return nil
}

func runRegistryAdd(cmd *cobra.Command, args []string) error {
	activity := registry.Activity{
		ID:                   addID,
		DisplayName:          addDisplayName,
		Description:          addDescription,
		Category:             addCategory,
		Version:              addVersion,
		TaskType:             addTaskType,
		ImplementationStatus: addStatus,
		InputSchema:          map[string]interface{}{},
		OutputSchema:         map[string]interface{}{},
		ErrorCodes:           []string{},
		Timeout:              "30s",
	}
	if err := addActivity(&activity); err != nil {
		return fmt.Errorf("error adding activity: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added activity: %s\n", activity.ID)
	return nil
}

func runRegistryUpdate(cmd *cobra.Command, args []string) error {
	id, field, value := args[0], args[1], args[2]
	if err := updateActivity(id, field, value); err != nil {
		return fmt.Errorf("error updating activity: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated activity %s, field %s to %s\n", id, field, value)
	return nil
}

func addActivity(activity *registry.Activity) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = &registry.ActivityRegistry{Version: "1.0.0"}
	}

	for _, existing := range reg.Activities {
		if existing.ID == activity.ID {
			return fmt.Errorf("activity with ID %s already exists", activity.ID)
		}
		if existing.TaskType == activity.TaskType {
			return fmt.Errorf("task type %s is already registered by %s", activity.TaskType, existing.ID)
		}
	}

	reg.Activities = append(reg.Activities, *activity)
	return saveRegistry(reg, registryPath)
}

func updateActivity(id, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	var target *registry.Activity
	for i := range reg.Activities {
		if reg.Activities[i].ID == id {
			target = &reg.Activities[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "status":
		target.ImplementationStatus = value
	case "version":
		target.Version = value
	case "displayName":
		target.DisplayName = value
	case "description":
		target.Description = value
	case "category":
		target.Category = value
	case "taskType":
		target.TaskType = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		target.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		target.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	return saveRegistry(reg, registryPath)
}

func saveRegistry(reg *registry.ActivityRegistry, path string) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)

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
