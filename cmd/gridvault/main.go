package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gridvault/internal/app"
	"gridvault/internal/config"
	"gridvault/internal/core"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Extract", "AcceptEdits").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts for a passphrase without echoing it.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

var rootCmd = &cobra.Command{
	Use:   "gridvault",
	Short: "Spreadsheet metadata extraction and versioning",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Generate a new host ID
		hostID := uuid.New().String()

		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:   %s\n", cfg.HostID)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Store:     %s\n", cfg.Store.Type)
		fmt.Printf("Vault:     %s (%s)\n", cfg.Vault.Name, cfg.Vault.Type)
		return nil
	},
}

// key command
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage encryption keys",
}

var keyInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SetupEncryption")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("Passphrase for new key: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.SetupEncryption(passphrase); err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		fmt.Println("Encryption key pair generated.")
		return nil
	},
}

// extract command
var extractCmd = &cobra.Command{
	Use:   "extract PATH",
	Short: "Extract workbook metadata into chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		forceRefresh, _ := cmd.Flags().GetBool("force-refresh")
		storeFile, _ := cmd.Flags().GetBool("store-file")
		includeEmpty, _ := cmd.Flags().GetBool("include-empty-chunks")
		quiet, _ := cmd.Flags().GetBool("quiet")

		a, err := newApp("Extract")
		if err != nil {
			return err
		}
		defer a.Close()

		var progress core.ProgressFunc
		if !quiet {
			progress = func(stage, message string, percent int) {
				fmt.Fprintf(os.Stderr, "[%3d%%] %s: %s\n", percent, stage, message)
			}
		}

		res, err := a.Extract(args[0], forceRefresh, storeFile, includeEmpty, progress)
		if err != nil {
			return fmt.Errorf("extraction failed: %w", err)
		}

		source := "fresh"
		if res.FromCache {
			source = "cache"
		}
		fmt.Printf("Extracted %d chunk(s) from %s (version %d, %s)\n",
			len(res.Chunks), args[0], res.Version.VersionNumber, source)
		fmt.Printf("Compressed output: %d chars total, %.0f avg per chunk\n",
			res.Stats.TotalCharacters, res.Stats.AverageCharactersPerChunk)
		return nil
	},
}

// versions command
var versionsCmd = &cobra.Command{
	Use:   "versions PATH",
	Short: "View a workbook's version history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Versions")
		if err != nil {
			return err
		}
		defer a.Close()

		versions, err := a.Versions(args[0])
		if err != nil {
			return err
		}

		if len(versions) == 0 {
			fmt.Println("No versions recorded.")
			return nil
		}

		for _, v := range versions {
			blob := ""
			if v.FileChecksum != "" {
				blob = "  [file captured]"
			}
			fmt.Printf("v%d  %s  %s  %s%s\n",
				v.VersionNumber,
				v.ID,
				v.CreatedAt.Format("2006-01-02 15:04:05"),
				v.ChangeDescription,
				blob,
			)
		}
		return nil
	},
}

// pending command
var pendingCmd = &cobra.Command{
	Use:   "pending PATH",
	Short: "List edits proposed against the latest version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sheet, _ := cmd.Flags().GetString("sheet")
		statusStr, _ := cmd.Flags().GetString("status")

		a, err := newApp("PendingEdits")
		if err != nil {
			return err
		}
		defer a.Close()

		edits, err := a.PendingEdits(args[0], sheet, core.EditStatus(statusStr))
		if err != nil {
			return err
		}

		if len(edits) == 0 {
			fmt.Println("No edits found.")
			return nil
		}

		for _, e := range edits {
			content := e.CellData.Value
			if e.CellData.Formula != "" {
				content = e.CellData.Formula
			}
			fmt.Printf("%s  %-8s  %s!%s  %q  %s\n",
				e.ID,
				e.Status,
				e.SheetName,
				e.CellAddress,
				content,
				e.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return nil
	},
}

// propose command
var proposeCmd = &cobra.Command{
	Use:   "propose PATH SHEET CELL",
	Short: "Propose a cell edit",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, _ := cmd.Flags().GetString("value")
		formula, _ := cmd.Flags().GetString("formula")
		fill, _ := cmd.Flags().GetString("fill")

		if value == "" && formula == "" {
			return fmt.Errorf("either --value or --formula is required")
		}

		a, err := newApp("ProposeEdit")
		if err != nil {
			return err
		}
		defer a.Close()

		edit, err := a.ProposeEdit(args[0], args[1], args[2], value, formula, fill)
		if err != nil {
			return fmt.Errorf("proposing edit: %w", err)
		}

		fmt.Printf("Proposed edit %s on %s!%s\n", edit.ID, edit.SheetName, edit.CellAddress)
		return nil
	},
}

// accept command
var acceptCmd = &cobra.Command{
	Use:   "accept EDIT_ID...",
	Short: "Accept pending edits",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		newVersion, _ := cmd.Flags().GetBool("new-version")

		a, err := newApp("AcceptEdits")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.AcceptEdits(args, newVersion)
		if err != nil {
			return fmt.Errorf("accepting edits: %w", err)
		}

		fmt.Printf("Accepted %d of %d edit(s)\n", res.AcceptedCount, len(args))
		if len(res.FailedIDs) > 0 {
			fmt.Printf("Failed: %s\n", strings.Join(res.FailedIDs, ", "))
		}
		for _, id := range res.VersionIDs {
			fmt.Printf("New version: %s\n", id)
		}
		if !res.Success {
			return fmt.Errorf("some edits could not be accepted")
		}
		return nil
	},
}

// reject command
var rejectCmd = &cobra.Command{
	Use:   "reject EDIT_ID...",
	Short: "Reject pending edits and restore their cells",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RejectEdits")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.RejectEdits(args)
		if err != nil {
			return fmt.Errorf("rejecting edits: %w", err)
		}

		fmt.Printf("Rejected %d of %d edit(s)\n", res.RejectedCount, len(args))
		if len(res.FailedIDs) > 0 {
			fmt.Printf("Failed: %s\n", strings.Join(res.FailedIDs, ", "))
		}
		if !res.Success {
			return fmt.Errorf("some edits could not be rejected")
		}
		return nil
	},
}

// download command
var downloadCmd = &cobra.Command{
	Use:   "download VERSION_ID",
	Short: "Download a version's captured workbook file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		encrypted, _ := cmd.Flags().GetBool("encrypted")
		if output == "" {
			return fmt.Errorf("--output is required")
		}

		a, err := newApp("DownloadVersion")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase := ""
		if encrypted {
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}

		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()

		if err := a.DownloadVersion(args[0], f, passphrase); err != nil {
			return fmt.Errorf("downloading version: %w", err)
		}

		fmt.Printf("Version %s written to %s\n", args[0], output)
		return nil
	},
}

// session command
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage editing session path aliases",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start SESSION_PATH CANONICAL_PATH",
	Short: "Map a session temp path to a workbook path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("StartEditingSession")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.StartEditingSession(args[0], args[1]); err != nil {
			return fmt.Errorf("starting session: %w", err)
		}
		fmt.Printf("Session %s now shadows %s\n", args[0], args[1])
		return nil
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end SESSION_PATH",
	Short: "Remove a session path mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("EndEditingSession")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.EndEditingSession(args[0]); err != nil {
			return fmt.Errorf("ending session: %w", err)
		}
		fmt.Printf("Session %s removed\n", args[0])
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				d := op.FinishedAt.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-18s  %s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// key subcommands
	keyCmd.AddCommand(keyInitCmd)

	// session subcommands
	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionEndCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().Bool("force-refresh", false, "Bypass cached metadata and re-extract")
	extractCmd.Flags().Bool("store-file", false, "Capture the workbook file in the vault")
	extractCmd.Flags().Bool("include-empty-chunks", false, "Keep all-empty chunks in the output")
	extractCmd.Flags().BoolP("quiet", "q", false, "Suppress progress output")
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(pendingCmd)
	pendingCmd.Flags().String("sheet", "", "Filter by sheet name")
	pendingCmd.Flags().String("status", "", "Filter by status (pending, accepted, rejected)")
	rootCmd.AddCommand(proposeCmd)
	proposeCmd.Flags().String("value", "", "New cell value")
	proposeCmd.Flags().String("formula", "", "New cell formula")
	proposeCmd.Flags().String("fill", "", "Fill color marking the pending edit")
	rootCmd.AddCommand(acceptCmd)
	acceptCmd.Flags().Bool("new-version", true, "Snapshot affected workbooks after accepting")
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringP("output", "o", "", "Output file path")
	downloadCmd.Flags().Bool("encrypted", false, "Blob is encrypted; prompt for passphrase")
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
