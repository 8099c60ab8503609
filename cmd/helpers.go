package cmd

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/emerald-finance/emerald/internal/configs"
	kerrors "github.com/emerald-finance/emerald/internal/errors"
	"github.com/emerald-finance/emerald/internal/ui"
	"github.com/emerald-finance/emerald/internal/utils"
	"github.com/emerald-finance/emerald/internal/workflows"
	"github.com/spf13/pflag"
)

// startSpinner creates and starts a spinner with the given message when not in verbose or debug mode.
// Returns the spinner and a function that should be deferred to clean up.
//
// spinner.FinalMSG values do not need trailing newlines; the cleanup
// function adds one before printing.
func startSpinner(message string) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message

	if err := s.Color("cyan"); err != nil {
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	quiet := !verbose && !debug
	if quiet {
		s.Start()
		// Ensure log output is discarded unless in verbose mode.
		log.SetOutput(io.Discard)
	} else {
		Logger.Infof("Running in verbose or debug mode: %s", message)
	}

	cleanup := func() {
		if quiet {
			log.SetOutput(os.Stdout)
		}

		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}

		// Stop the spinner first to clear the spinner line.
		if quiet {
			s.Stop()
		}

		// Print final message to stdout (for tests to capture).
		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}

	return s, cleanup
}

// openWorkspace opens the database for a command. The caller closes it.
func openWorkspace() (*workflows.Workspace, error) {
	Logger.Debugf("Opening workspace")
	return workflows.Open(workflows.OpenOptions{
		Settings: configs.EmeraldSettings,
		Config:   Config,
		Logger:   Logger,
	})
}

// resolveTenant returns the --tenant flag, or the active context.
func resolveTenant(ws *workflows.Workspace) (string, error) {
	if tenant != "" {
		return tenant, nil
	}
	profile, err := ws.Users.Profile()
	if err != nil {
		return "", err
	}
	if profile.ActiveContext == "" {
		return "", kerrors.ErrNoActiveContext
	}
	Logger.Debugf("Using active context %s", profile.ActiveContext)
	return profile.ActiveContext, nil
}

// currency is the symbol amounts are printed with.
func currency(ws *workflows.Workspace) string {
	if profile, err := ws.Users.Profile(); err == nil && profile.Currency != "" {
		return profile.Currency
	}
	if Config != nil && Config.Display.Currency != "" {
		return Config.Display.Currency
	}
	return configs.DefaultCurrency
}

// formatError formats a workflow error for display to the user. action
// completes "Failed to ..." for errors without a dedicated message.
func formatError(err error, action string) string {
	switch {
	case errors.Is(err, kerrors.ErrNoActiveContext):
		return ui.Error.Sprint("✗") + " No active budget context\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("emerald context add <name>") + " or pass " + ui.Flag.Sprint("--tenant")

	case errors.Is(err, kerrors.ErrContextNotFound):
		return ui.Error.Sprint("✗") + " " + err.Error() + "\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("emerald context list") + " to see your contexts"

	case errors.Is(err, kerrors.ErrContextExists),
		errors.Is(err, kerrors.ErrNotFound),
		errors.Is(err, kerrors.ErrInvalidAmount),
		errors.Is(err, kerrors.ErrValidation):
		return ui.Error.Sprint("✗") + " " + err.Error()

	case errors.Is(err, kerrors.ErrParse):
		return ui.Error.Sprint("✗") + " The document is not valid JSON\n" +
			ui.Info.Sprint("→") + " " + err.Error()

	case errors.Is(err, kerrors.ErrNoBackupFound):
		return ui.Error.Sprint("✗") + " " + err.Error() + "\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("emerald backup") + " to create one"

	case errors.Is(err, kerrors.ErrDecryptFailed):
		return ui.Error.Sprint("✗") + " Some records cannot be decrypted\n" +
			ui.Info.Sprint("→") + " " + err.Error()

	case errors.Is(err, kerrors.ErrStoreUnavailable):
		return ui.Error.Sprint("✗") + " The database is unavailable\n" +
			ui.Info.Sprint("→") + " Another " + ui.Code.Sprint("emerald") + " process may be holding the lock: " + err.Error()

	case errors.Is(err, kerrors.ErrSchemaTooNew):
		return ui.Error.Sprint("✗") + " The database was written by a newer version of Emerald"

	case errors.Is(err, kerrors.ErrTransaction):
		return ui.Error.Sprint("✗") + " Nothing was changed: " + err.Error()

	default:
		return ui.Error.Sprint("✗") + " Failed to " + action + ": " + err.Error()
	}
}

// isUnexpectedError returns true if the error is unexpected and should cause a non-zero exit.
func isUnexpectedError(err error) bool {
	switch {
	case errors.Is(err, kerrors.ErrNoActiveContext),
		errors.Is(err, kerrors.ErrContextNotFound),
		errors.Is(err, kerrors.ErrContextExists),
		errors.Is(err, kerrors.ErrNotFound),
		errors.Is(err, kerrors.ErrInvalidAmount),
		errors.Is(err, kerrors.ErrValidation),
		errors.Is(err, kerrors.ErrParse),
		errors.Is(err, kerrors.ErrNoBackupFound):
		return false
	default:
		return true
	}
}

// reportError sets the spinner's final message for err and decides whether
// the command fails.
func reportError(s *spinner.Spinner, err error, action string) error {
	s.FinalMSG = formatError(err, action)
	if isUnexpectedError(err) {
		return err
	}
	return nil
}

// enumValue is a string flag restricted to a fixed set of values.
type enumValue struct {
	value   string
	allowed []string
}

var _ pflag.Value = (*enumValue)(nil)

func newEnumValue(def string, allowed ...string) *enumValue {
	return &enumValue{value: def, allowed: allowed}
}

func (e *enumValue) String() string {
	return e.value
}

func (e *enumValue) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	if !slices.Contains(e.allowed, s) {
		return fmt.Errorf("must be one of %s", strings.Join(e.allowed, ", "))
	}
	e.value = s
	return nil
}

func (e *enumValue) Type() string {
	return strings.Join(e.allowed, "|")
}

// readAttachment reads a receipt file into a data URL.
func readAttachment(path string) (string, error) {
	data, err := utils.ReadInput(path)
	if err != nil {
		return "", err
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// today is the local date in YYYY-MM-DD form.
func today() string {
	return time.Now().Format("2006-01-02")
}

// parseAmountFlag parses a user-entered amount.
func parseAmountFlag(s string) (float64, error) {
	amount, err := utils.ParseAmount(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", kerrors.ErrInvalidAmount, err)
	}
	return amount, nil
}
