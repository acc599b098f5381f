package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gantrydb/gantry/internal/auth"
	"github.com/gantrydb/gantry/internal/model"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, and revoke API keys used to authenticate against the Gantry API.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		name        string
		description string
		canDelete   bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Generate a new API key. The raw key is shown once and cannot be retrieved again.",
		Example: `  gantry key create --name ci-pipeline --description "CI pipeline"
  gantry key create --name janitor --can-delete`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(name, description, canDelete)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Unique name for the key (required)")
	cmd.Flags().StringVar(&description, "description", "", "Human-readable description")
	cmd.Flags().BoolVar(&canDelete, "can-delete", false, "Grant the delete permission")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runKeyCreate(name, description string, canDelete bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	rawKey := auth.GenerateAPIKey()

	apiKey := &model.APIKey{
		Name:        name,
		KeyHash:     auth.HashAPIKey(rawKey),
		KeyPrefix:   auth.DisplayPrefix(rawKey),
		Description: description,
		IsActive:    true,
		Permissions: model.Permissions{
			CanCreate: true,
			CanRead:   true,
			CanUpdate: true,
			CanDelete: canDelete,
		},
	}

	if err := st.CreateAPIKey(context.Background(), apiKey); err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Println("API Key created:")
	fmt.Println()
	fmt.Printf("  Key:  %s\n", rawKey)
	fmt.Printf("  Name: %s\n", name)
	if description != "" {
		fmt.Printf("  Desc: %s\n", description)
	}
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	keys, err := st.ListAPIKeys(context.Background())
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	type keyRow struct {
		Prefix string `json:"prefix"`
		Name   string `json:"name"`
		Delete bool   `json:"can_delete"`
		Active bool   `json:"active"`
	}

	rows := make([]keyRow, len(keys))
	for i, k := range keys {
		rows[i] = keyRow{
			Prefix: k.KeyPrefix,
			Name:   k.Name,
			Delete: k.Permissions.CanDelete,
			Active: k.IsActive,
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No API keys configured. Use 'gantry key create' to create one.")
		return nil
	}

	fmt.Printf("%-16s %-24s %-8s %-8s\n", "PREFIX", "NAME", "DELETE", "ACTIVE")
	fmt.Printf("%-16s %-24s %-8s %-8s\n", "------", "----", "------", "------")
	for _, k := range rows {
		del, active := "no", "no"
		if k.Delete {
			del = "yes"
		}
		if k.Active {
			active = "yes"
		}
		fmt.Printf("%-16s %-24s %-8s %-8s\n", k.Prefix, k.Name, del, active)
	}

	return nil
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <prefix>",
		Short: "Revoke an API key by its prefix",
		Long:  "Deactivate an API key, preventing any further authenticated requests using that key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(args[0])
		},
	}

	return cmd
}

func runKeyRevoke(prefix string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	keys, err := st.ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	var matched *model.APIKey
	for i := range keys {
		if strings.HasPrefix(keys[i].KeyPrefix, prefix) {
			matched = &keys[i]
			break
		}
	}
	if matched == nil {
		return fmt.Errorf("no API key found with prefix %q", prefix)
	}

	if err := st.SetAPIKeyActive(ctx, matched.ID, false); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}

	fmt.Printf("Revoked API key with prefix %q\n", matched.KeyPrefix)
	return nil
}
