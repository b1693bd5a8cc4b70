// Command normalize_phones rewrites stored contact and conversation phones into
// the canonical digits-only form, merging rows that turn out to be duplicates.
// New writes are already canonical; this retrofits older rows.
package main

import (
	"context"
	"flag"
	"os"

	"whatsapp-crm/internal/config"
	"whatsapp-crm/internal/database"
	"whatsapp-crm/internal/logging"
	"whatsapp-crm/internal/store"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report what would change and roll back")
	flag.Parse()

	cfg, _ := config.LoadConfig()
	log := logging.New(os.Stdout, cfg.LogLevel)

	db, err := database.Open(cfg, log.Sub("database"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	log.Info().Bool("dry_run", *dryRun).Msg("starting phone normalization...")
	report, err := store.New(db).NormalizePhones(context.Background(), *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("phone normalization failed, nothing was changed")
	}

	log.Info().
		Int("contacts_rewritten", report.ContactsRewritten).
		Int("contacts_merged", report.ContactsMerged).
		Int("conversations_rewritten", report.ConversationsRewritten).
		Int("conversations_merged", report.ConversationsMerged).
		Bool("dry_run", *dryRun).
		Msg("phone normalization completed")
}
