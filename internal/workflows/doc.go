// Package workflows provides the operations behind every Emerald command.
//
// Workflows coordinate the record gateway, the backup service, the
// preference slot and the audit log. They know nothing about flags,
// spinners or output formatting; the cmd/ package parses arguments, calls
// one workflow and prints the result.
//
// Open wires a Workspace from the resolved settings and configuration:
//
//	ws, err := workflows.Open(workflows.OpenOptions{Settings: s, Config: cfg, Logger: log})
//	if err != nil {
//	    return err
//	}
//	defer ws.Close()
//
// The workspace groups four workflows:
//
//   - Users: profile, onboarding, budget contexts and reset
//   - Planning: subscriptions, goals and debts
//   - Ledger: transactions, attachments and budgets
//   - Backups: export, sync, restore and backup discovery
//
// # Tenants
//
// Every read and write that touches tenant data takes the tenant id as an
// argument. The active context in the preference slot is only a default
// for the CLI; no workflow reads it. A record written without a context
// inherits the tenant argument.
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package and
// *models.ValidationError for rejected input. Use errors.Is to check for
// specific conditions:
//
//	_, err := ws.Users.AddContext(ctx, in)
//	if errors.Is(err, kerrors.ErrContextExists) {
//	    // Ask for another name
//	}
package workflows
